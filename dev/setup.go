package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cpstats-backend/internal/profiles"
	configlibsql "cpstats-backend/pkg/configutil/libsql"

	"github.com/mazen160/go-random"
)

const profileDbPath = "dev/.state/cpstats.db"
const localConfigPath = "config.local.json5"

func CreateProfileDB() error {
	_, err := os.Stat(profileDbPath)
	if err == nil {
		fmt.Println("database already created at", profileDbPath)
		return nil
	}

	fmt.Println("creating database at", profileDbPath)
	db, err := configlibsql.Struct{File: profileDbPath}.OpenDB(profiles.Schema)
	if err != nil {
		return err
	}
	return db.Close()
}

// WriteLocalConfig points the server at the dev database and gives it a
// random signing secret, an existing config.local.json5 is left alone.
func WriteLocalConfig() error {
	_, err := os.Stat(localConfigPath)
	if err == nil {
		fmt.Println("local config already exists at", localConfigPath)
		return nil
	}

	secret, err := random.String(32)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(profileDbPath)
	if err != nil {
		return err
	}

	contents := fmt.Sprintf(`{
  // generated by 'go run ./dev', not checked in
  database: {
    file: %q,
  },
  auth: {
    jwt_secret: %q,
  },
}
`, abs, secret)
	fmt.Println("writing local config to", localConfigPath)
	return os.WriteFile(localConfigPath, []byte(contents), 0600)
}

func PrintConfigLocations() {
	slog.Info("mint a credential with `go run ./cmd/cpstats-cli token <user id>` and start the server with `go run ./cmd/cpstats-server -v`, put a telemetry.json5 next to config.json5 to export traces and metrics.")
}

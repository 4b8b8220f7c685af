// Package app loads the configuration and builds the process wide state
// shared by the server and the cli.
package app

import (
	"database/sql"
	"fmt"
	"os"

	"cpstats-backend/internal/components/chrono"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/scrapers"
	"cpstats-backend/internal/service"
	"cpstats-backend/internal/stats"
	"cpstats-backend/pkg/configutil"
	configlibsql "cpstats-backend/pkg/configutil/libsql"
)

type AuthConfig struct {
	JwtSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `json:"issuer" env:"ISSUER"`
}

type Config struct {
	Port        int                 `json:"port" env:"CPSTATS_PORT"`
	CacheMaxAge int                 `json:"cache_max_age" env:"CPSTATS_CACHE_MAX_AGE"`
	Database    configlibsql.Struct `json:"database" envPrefix:"CPSTATS_DATABASE_"`
	Auth        AuthConfig          `json:"auth" envPrefix:"CPSTATS_AUTH_"`
	Scrapers    scrapers.Config     `json:"scrapers" envPrefix:"CPSTATS_SCRAPERS_"`
}

const DefaultPort = 8080

// LoadConfig reads `path` (json5, with an optional .local override) and
// applies the CPSTATS_* environment variables on top of it.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.Load[Config](path)
	if err != nil {
		return Config{}, err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Database.File == "" && cfg.Database.Url == "" {
		cfg.Database.File = "cpstats.db"
	}
	if cfg.Auth.JwtSecret == "" {
		return Config{}, fmt.Errorf("auth.jwt_secret (CPSTATS_AUTH_JWT_SECRET) is required")
	}
	return cfg, nil
}

// App is everything built from a Config.
type App struct {
	Service  service.Service
	Verifier profiles.Verifier
	Store    *profiles.Store
	db       *sql.DB
}

func New(cfg Config, tel telemetry.API) (App, error) {
	db, err := cfg.Database.OpenDB(profiles.Schema)
	if err != nil {
		return App{}, fmt.Errorf("open profile database: %w", err)
	}

	fetchers, err := scrapers.New(cfg.Scrapers, tel)
	if err != nil {
		db.Close()
		return App{}, err
	}

	clock := chrono.StandardImpl{}
	verifier := profiles.NewVerifier(cfg.Auth.JwtSecret, cfg.Auth.Issuer, clock)
	store := profiles.NewStore(db, tel)
	svc := service.New(
		profiles.NewLocal(verifier, store),
		fetchers,
		service.WithCustomTelemetryAPI(tel),
		service.WithCustomClock(clock),
	)

	return App{
		Service:  svc,
		Verifier: verifier,
		Store:    store,
		db:       db,
	}, nil
}

func (a App) Close() error {
	return a.db.Close()
}

// Platforms lists the platforms the app has a fetcher for.
func (a App) Platforms() []stats.Platform {
	return a.Service.Platforms()
}

// ConfigPath is the config file used when no path is given, it can be
// changed with CPSTATS_CONFIG.
func ConfigPath() string {
	path := os.Getenv("CPSTATS_CONFIG")
	if path == "" {
		return "config.json5"
	}
	return path
}

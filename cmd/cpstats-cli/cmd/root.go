package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"cpstats-backend/internal/app"
	"cpstats-backend/internal/components/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	asJson     bool
)

// initialized by the root command before any subcommand runs
var instance app.App

var rootCmd = &cobra.Command{
	Use:   "cpstats-cli",
	Short: "cpstats-cli looks up and refreshes competitive programming statistics using the server's configuration.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		instance, err = app.New(cfg, telemetry.SlogAPI{})
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return instance.Close()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", app.ConfigPath(), "Path to the json5 config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
	rootCmd.PersistentFlags().BoolVar(&asJson, "json", false, "Print results as json instead of tables.")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJson(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

// fields flattens a json object into sorted field/value rows.
func fields(value any) ([]table.Row, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var object map[string]any
	err = json.Unmarshal(serialized, &object)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(object))
	for k := range object {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]table.Row, len(keys))
	for i, k := range keys {
		rows[i] = table.Row{k, object[k]}
	}
	return rows, nil
}

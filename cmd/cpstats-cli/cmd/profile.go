package cmd

import (
	"fmt"
	"strings"
	"time"

	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/stats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "The 'profile' subcommand reads and edits stored profiles.",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user id>",
	Short: "Prints the usernames and last refreshed statistics of a user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := instance.Service.GetProfileIdentity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJson {
			return printJson(profile)
		}
		renderProfile(profile)
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <user id> <platform>=<username>...",
	Short: "Sets the usernames of a user, creating the profile if needed. An empty username clears a platform.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		usernames := map[string]string{}
		for _, arg := range args[1:] {
			platform, username, found := strings.Cut(arg, "=")
			if !found {
				return fmt.Errorf("expected <platform>=<username>, got '%s'", arg)
			}
			usernames[platform] = username
		}

		profile, err := instance.Service.SetUsernamesIdentity(cmd.Context(), args[0], usernames)
		if err != nil {
			return err
		}
		if asJson {
			return printJson(profile)
		}
		renderProfile(profile)
		return nil
	},
}

func renderProfile(profile profiles.Profile) {
	updatedAt := "never"
	if profile.StatsUpdatedAt != nil {
		updatedAt = profile.StatsUpdatedAt.Format(time.RFC3339)
	}

	t := newTable()
	t.SetTitle("%s (stats updated: %s)", profile.ID, updatedAt)
	t.AppendHeader(table.Row{"Platform", "Username", "Stats"})
	for _, platform := range stats.Platforms {
		username := profile.Usernames[platform]
		raw, ok := profile.Stats[platform]
		statsText := ""
		if ok {
			statsText = string(raw)
		}
		if username == "" && statsText == "" {
			continue
		}
		t.AppendRow(table.Row{platform, username, statsText})
	}
	t.Render()
}

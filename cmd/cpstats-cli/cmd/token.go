package cmd

import (
	"fmt"
	"time"

	"cpstats-backend/internal/profiles"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", profiles.DefaultTokenTTL, "How long the credential stays valid.")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token <user id>",
	Short: "Mints a bearer credential for a user, signed with the configured secret.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := instance.Verifier.Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

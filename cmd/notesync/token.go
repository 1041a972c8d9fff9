package main

import (
	"fmt"
	"os"
	"time"

	"notesync/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens for the sync server",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue USER",
	Short: "Issue a token for USER signed with NOTESYNC_JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := auth.Init(os.Getenv("NOTESYNC_JWT_SECRET")); err != nil {
			fatal("Invalid NOTESYNC_JWT_SECRET", err)
		}
		token, err := auth.GenerateToken(args[0], tokenTTL)
		if err != nil {
			fatal("Failed to issue token", err)
		}
		fmt.Println(token)
	},
}

func init() {
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}

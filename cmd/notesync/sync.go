package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"notesync/client"

	"github.com/spf13/cobra"
)

var syncTimeout time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local notes with the server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := openDevice()
		defer d.close()

		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		result := d.coordinator.SyncNotes(ctx)
		rep := d.coordinator.LastReport()
		fmt.Println(result)
		if result == client.SyncSuccess {
			fmt.Printf("merged %d, added %d, archived %d, pushed %d, forced deletes %d, pending done %d\n",
				rep.Changed, rep.Added, rep.Archived, rep.Pushed, rep.ForcedDeletes, rep.PendingDone)
		}
		for _, msg := range rep.Notices {
			fmt.Fprintln(os.Stderr, "notice:", msg)
		}
		if result == client.SyncFailed {
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 2*time.Minute, "Overall time budget for the sync")
	rootCmd.AddCommand(syncCmd)
}

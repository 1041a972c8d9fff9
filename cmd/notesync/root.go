package main

import (
	"fmt"
	"os"

	"notesync/client"

	"github.com/rohanthewiz/logger"
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Local notes that stay in step with a notesync server",
	Long: `notesync keeps notes in a local folder and reconciles them with a
notesync server when NOTESYNC_SYNC_ENABLED is set.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := os.Getenv("NOTESYNC_LOG_LEVEL")
		if level == "" {
			level = "warn"
		}
		if verbose {
			level = "debug"
		}
		logger.SetLogLevel(level)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// device bundles what a command needs to touch the local stores and the server.
type device struct {
	session     *client.Session
	service     *client.DataService
	coordinator *client.Coordinator
}

func openDevice() *device {
	cfg, err := client.LoadConfig()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration", err)
	}

	session, err := client.OpenSession(cfg.Home)
	if err != nil {
		fatal("Failed to open local stores", err)
	}

	remote := client.NewHTTPRemote(cfg)
	return &device{
		session:     session,
		service:     client.NewDataService(session, remote, cfg.Enabled),
		coordinator: client.NewCoordinator(session, remote, cfg.Enabled),
	}
}

func (d *device) close() {
	if err := d.session.Close(); err != nil {
		logger.LogErr(err, "failed to close session")
	}
}

func printNotices(svc *client.DataService) {
	for _, msg := range svc.TakeNotices() {
		fmt.Fprintln(os.Stderr, "notice:", msg)
	}
}

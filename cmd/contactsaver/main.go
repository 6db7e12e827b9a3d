package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/config"
	"github.com/spachava753/contactsaver/logging"
	"github.com/spachava753/contactsaver/remote"
)

var (
	// Global flags
	verbose    bool
	jsonLogs   bool
	configPath string

	logger   *zap.Logger
	settings *config.Store
)

var rootCmd = &cobra.Command{
	Use:   "contactsaver",
	Short: "Save phone numbers seen on screen and sync contacts from a server",
	Long: `contactsaver builds a local address book two ways.

Live scans read a surface (WhatsApp Web, the macOS Messages history, or a Gmail
mailbox), scroll it, and save every unknown phone number as a sequentially
named entry.

Reconciliation pulls pending contacts from the contacts server, upserts them
by phone number, and reports the outcome of each back in one batch. The daemon
runs reconciliation on the configured interval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(logging.Options{Debug: verbose, JSON: jsonLogs})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		settings, err = config.NewStore(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/contactsaver/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, color.YellowString("%s", hint))
		}
		os.Exit(1)
	}
}

// errorHint suggests a fix for configuration-shaped failures.
func errorHint(err error) string {
	switch {
	case errors.Is(err, remote.ErrMissingAPIKey):
		return "Set one with: contactsaver config set api_key KEY"
	case addressbook.IsCode(err, addressbook.ErrorCodeStore):
		return "Check the address book path (contactsaver config set database PATH) and that the file is writable."
	default:
		return ""
	}
}

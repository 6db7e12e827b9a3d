package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/contactsaver/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Long: `Change one setting and save the file. Keys: server_url, api_key,
auto_sync_enabled, sync_on_start, sync_interval (5, 15, 30, 60), database,
notify_email, placeholder_name, scan.prefix, scan.budget. A running daemon picks the change up.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Environment overrides are not persisted.
		cfg, err := settings.LoadFile()
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := settings.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s updated\n", green("✓"), args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), settings.Path())
		return nil
	},
}

func printConfig(out io.Writer, cfg config.Config) {
	onOff := func(b bool) string {
		if b {
			return green("on")
		}
		return gray("off")
	}
	fmt.Fprintln(out, bold("Sync"))
	fmt.Fprintf(out, "  Server:        %s\n", cfg.ServerURL)
	fmt.Fprintf(out, "  API key:       %s\n", cfg.MaskedAPIKey())
	fmt.Fprintf(out, "  Auto sync:     %s\n", onOff(cfg.AutoSync))
	fmt.Fprintf(out, "  Sync on start: %s\n", onOff(cfg.SyncOnStart))
	fmt.Fprintf(out, "  Interval:      %d minutes\n", cfg.SyncInterval)
	fmt.Fprintf(out, "  Last sync:     %s\n", cfg.LastSyncText(timeNow()))
	fmt.Fprintln(out, bold("Scan"))
	fmt.Fprintf(out, "  Prefix:        %s\n", cfg.Scan.Prefix)
	fmt.Fprintf(out, "  Budget:        %d\n", cfg.Scan.Budget)
	fmt.Fprintf(out, "  Scrolls:       %d-%d (stop after %d passes without new numbers)\n",
		cfg.Scan.MinScrolls, cfg.Scan.MaxScrolls, cfg.Scan.NoNewThreshold)
	fmt.Fprintf(out, "  Packages:      %s\n", strings.Join(cfg.Scan.Packages, ", "))
	fmt.Fprintln(out, bold("Files"))
	fmt.Fprintf(out, "  Config:        %s\n", settings.Path())
	fmt.Fprintf(out, "  Address book:  %s\n", cfg.DatabasePath(settings.Dir()))
	if cfg.PlaceholderName != "" {
		fmt.Fprintf(out, "  Placeholder:   %s\n", cfg.PlaceholderName)
	}
	if cfg.NotifyEmail != "" {
		fmt.Fprintf(out, "  Notify email:  %s\n", cfg.NotifyEmail)
	}
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

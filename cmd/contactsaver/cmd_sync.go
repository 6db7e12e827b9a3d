package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/contactsaver/phone"
	"github.com/spachava753/contactsaver/reconcile"
	"github.com/spachava753/contactsaver/remote"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass now",
	Long: `Fetch pending contacts from the server, upsert each into the address book by
phone number, and report every outcome back in one batch. Runs regardless of
auto_sync_enabled but needs an API key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		store, err := openAddressBook(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		sched := reconcile.NewScheduler(settings,
			syncPass(store, newWriter(cfg, store), buildNotifier(cfg, out)),
			reconcile.WithSchedulerLogger(logger))
		res, err := sched.RunNow(ctx)
		if err != nil {
			return err
		}
		printResult(out, res)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Test the server connection and API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		client, err := newRemote(cfg)
		if err != nil {
			return err
		}
		resp, err := client.Verify(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓"), firstNonEmpty(resp.Message, "Connection OK"))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the server's contact queue counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		client, err := newRemote(cfg)
		if err != nil {
			return err
		}
		st, err := client.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, bold("Contact stats"))
		fmt.Fprintf(out, "  Pending: %s\n", yellow(st.Pending))
		fmt.Fprintf(out, "  Synced:  %s\n", green(st.Synced))
		fmt.Fprintf(out, "  Failed:  %s\n", red(st.Failed))
		fmt.Fprintf(out, "  Deleted: %s\n", gray(st.Deleted))
		fmt.Fprintf(out, "  Total:   %d\n", st.Total)
		fmt.Fprintf(out, "  Last sync: %s\n", cfg.LastSyncText(timeNow()))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add PHONE NAME...",
	Short: "Add a contact to the server queue",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number := strings.TrimSpace(args[0])
		if !phone.Valid(number) {
			return fmt.Errorf("invalid phone number %q (need at least %d digits)", number, phone.MinDigits)
		}
		name := strings.TrimSpace(strings.Join(args[1:], " "))

		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		client, err := newRemote(cfg)
		if err != nil {
			return err
		}
		resp, err := client.AddContact(ctx, number, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓"), firstNonEmpty(resp.Message, "Contact added"))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report CONTACT_ID STATUS [DEVICE_CONTACT_ID]",
	Short: "Report the sync outcome of one remote contact",
	Long:  `Report one outcome to the server. STATUS is synced, failed, or deleted.`,
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome, err := parseOutcome(args)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		client, err := newRemote(cfg)
		if err != nil {
			return err
		}
		resp, err := client.Report(ctx, outcome)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓"), firstNonEmpty(resp.Message, "Reported"))
		return nil
	},
}

func parseOutcome(args []string) (remote.Outcome, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return remote.Outcome{}, fmt.Errorf("invalid contact id %q", args[0])
	}
	status, err := remote.ParseStatus(args[1])
	if err != nil {
		return remote.Outcome{}, err
	}
	outcome := remote.Outcome{ContactID: id, Status: status}
	if len(args) > 2 && strings.TrimSpace(args[2]) != "" {
		dev := strings.TrimSpace(args[2])
		outcome.DeviceContactID = &dev
	}
	return outcome, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(reportCmd)
}

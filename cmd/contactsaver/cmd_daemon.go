package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/config"
	"github.com/spachava753/contactsaver/reconcile"
)

var (
	daemonSourceOpts sourceOptions
	daemonRescan     time.Duration
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run periodic reconciliation and optional scans until interrupted",
	Long: `Run the reconciliation scheduler in the foreground. The periodic pass runs
every sync_interval minutes while auto_sync_enabled is set and an API key is
configured. Edits to the config file take effect without a restart.

With --scan the daemon also scans the named surface at start and then every
--rescan interval.`,
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
		writer := newWriter(cfg, store)
		notifier := buildNotifier(cfg, out)
		sched := reconcile.NewScheduler(settings, syncPass(store, writer, notifier),
			reconcile.WithSchedulerLogger(logger),
			reconcile.WithPeriodicHook(func(err error) {
				if err != nil {
					logger.Warn("periodic sync failed", zap.Error(err))
				}
			}))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return sched.Run(gctx) })
		sched.Apply(cfg)
		logger.Info("daemon started",
			zap.Bool("auto_sync", cfg.SyncEnabled()),
			zap.Duration("interval", cfg.Interval()),
			zap.String("config", settings.Path()))

		g.Go(func() error {
			return settings.Watch(gctx, logger, func(c config.Config) {
				sched.Apply(c)
			})
		})

		if cfg.SyncOnStart && cfg.SyncEnabled() {
			g.Go(func() error {
				res, err := sched.RunNow(gctx)
				if err != nil {
					logger.Warn("sync on start failed", zap.Error(err))
					return nil
				}
				printResult(out, res)
				return nil
			})
		}

		if daemonSourceOpts.name != "" {
			g.Go(func() error {
				return scanLoop(gctx, cfg, store, writer)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("daemon stopped")
		return nil
	},
}

// scanLoop runs a scan session now and then every daemonRescan until ctx is
// cancelled. A failed session is logged and retried on the next tick.
func scanLoop(ctx context.Context, cfg config.Config, store *addressbook.SQLiteStore, writer *addressbook.Writer) error {
	notifier := buildNotifier(cfg, rootCmd.OutOrStdout())
	for {
		summary, _, err := runScanSession(ctx, cfg, daemonSourceOpts, store, writer, rootCmd.OutOrStdout())
		if err != nil {
			logger.Warn("scan session failed", zap.String("source", daemonSourceOpts.name), zap.Error(err))
		} else {
			logger.Info("scan session finished",
				zap.Int("detected", summary.Detected),
				zap.Int("saved", summary.Saved),
				zap.Int("unsaved", summary.Unsaved),
				zap.String("reason", string(summary.Reason)))
			if err := notifier.Notify(context.WithoutCancel(ctx), "Contact scan complete", summary.String()); err != nil {
				logger.Warn("sending scan summary failed", zap.Error(err))
			}
		}

		if daemonRescan <= 0 {
			return nil
		}
		t := time.NewTimer(daemonRescan)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func init() {
	daemonSourceOpts.register(daemonCmd, "scan", "")
	daemonCmd.Flags().DurationVar(&daemonRescan, "rescan", time.Hour, "Interval between scan sessions (0 scans once)")
	rootCmd.AddCommand(daemonCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/config"
	"github.com/spachava753/contactsaver/gmail"
	"github.com/spachava753/contactsaver/reconcile"
	"github.com/spachava753/contactsaver/remote"
	"github.com/spachava753/contactsaver/scanner"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

var timeNow = time.Now

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openAddressBook(cfg config.Config) (*addressbook.SQLiteStore, error) {
	path := cfg.DatabasePath(settings.Dir())
	logger.Debug("opening address book", zap.String("path", path))
	return addressbook.OpenSQLite(path)
}

func newRemote(cfg config.Config) (*remote.Client, error) {
	return remote.New(cfg.ServerURL, cfg.APIKey, remote.WithLogger(logger))
}

func newWriter(cfg config.Config, store addressbook.Store) *addressbook.Writer {
	return addressbook.NewWriter(store,
		addressbook.WithPrefix(cfg.Scan.Prefix),
		addressbook.WithPlaceholder(cfg.PlaceholderName),
		addressbook.WithLogger(logger))
}

// scanConfig maps the persisted scan tuning onto a scanner config. Zero
// fields keep the scanner defaults.
func scanConfig(cfg config.Config) scanner.Config {
	out := scanner.DefaultConfig()
	sc := cfg.Scan
	if sc.Budget > 0 {
		out.Budget = sc.Budget
	}
	if sc.MinScrolls > 0 {
		out.MinScrolls = sc.MinScrolls
	}
	if sc.MaxScrolls > 0 {
		out.MaxScrolls = sc.MaxScrolls
	}
	if sc.NoNewThreshold > 0 {
		out.NoNewThreshold = sc.NoNewThreshold
	}
	if sc.InitialDelay > 0 {
		out.InitialDelay = sc.InitialDelay
	}
	if sc.ScrollDelay > 0 {
		out.ScrollDelay = sc.ScrollDelay
	}
	if sc.RetryDelay > 0 {
		out.RetryDelay = sc.RetryDelay
	}
	if len(sc.Packages) > 0 {
		out.Packages = append([]string(nil), sc.Packages...)
	}
	return out
}

// consoleNotifier prints notifications and scan progress.
type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) Notify(_ context.Context, title string, body string) error {
	_, err := fmt.Fprintf(n.out, "%s %s\n", bold(title+":"), body)
	return err
}

// notifiers fans a notification out to every member.
type notifiers []reconcile.Notifier

func (ns notifiers) Notify(ctx context.Context, title string, body string) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildNotifier prints to out and, when notify_email is set and Gmail
// credentials are present, also sends email.
func buildNotifier(cfg config.Config, out io.Writer) reconcile.Notifier {
	ns := notifiers{consoleNotifier{out: out}}
	if cfg.NotifyEmail == "" {
		return ns
	}
	creds, err := gmail.LoadCredentials()
	if err != nil {
		logger.Warn("email notifications disabled", zap.Error(err))
		return ns
	}
	mail, err := gmail.NewNotifier(creds, cfg.NotifyEmail)
	if err != nil {
		logger.Warn("email notifications disabled", zap.Error(err))
		return ns
	}
	return append(ns, mail)
}

// syncPass builds the reconciliation pass used by both `sync` and `daemon`.
// The remote client is rebuilt from the config of each pass so a changed
// server URL or API key takes effect without a restart.
func syncPass(store *addressbook.SQLiteStore, writer *addressbook.Writer, notifier reconcile.Notifier) reconcile.PassFunc {
	return func(ctx context.Context, cfg config.Config) (reconcile.Result, error) {
		client, err := newRemote(cfg)
		if err != nil {
			return reconcile.Result{}, err
		}
		runner := reconcile.NewRunner(client, store, writer,
			reconcile.WithLastSync(settings),
			reconcile.WithNotifier(notifier),
			reconcile.WithLogger(logger))
		return runner.RunOnce(ctx)
	}
}

func printResult(out io.Writer, res reconcile.Result) {
	if res.Failed > 0 {
		fmt.Fprintf(out, "%s %s\n", yellow("!"), res.Summary())
	} else {
		fmt.Fprintf(out, "%s %s\n", green("✓"), res.Summary())
	}
	if res.ReportErr != nil {
		fmt.Fprintf(out, "  %s %v\n", yellow("report not delivered:"), res.ReportErr)
	}
	if verbose {
		for _, o := range res.Outcomes {
			dev := "-"
			if o.DeviceContactID != nil {
				dev = *o.DeviceContactID
			}
			fmt.Fprintf(out, "  %d  %-7s %s\n", o.ContactID, o.Status, gray(dev))
		}
	}
}

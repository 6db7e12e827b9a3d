package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/browser"
	"github.com/spachava753/contactsaver/config"
	"github.com/spachava753/contactsaver/gmail"
	"github.com/spachava753/contactsaver/macos/messages"
	"github.com/spachava753/contactsaver/scanner"
)

const (
	sourceWhatsAppWeb = "whatsapp-web"
	sourceMessages    = "messages"
	sourceGmail       = "gmail"
)

// sourceOptions holds the per-source flags shared by `scan` and `daemon`.
type sourceOptions struct {
	name       string
	controlURL string
	profileDir string
	headless   bool
	chat       string
	mailbox    string
	pageSize   int
}

func (o *sourceOptions) register(cmd *cobra.Command, nameFlag string, def string) {
	cmd.Flags().StringVar(&o.name, nameFlag, def, "Surface to scan: whatsapp-web, messages, or gmail")
	cmd.Flags().StringVar(&o.controlURL, "control-url", "", "whatsapp-web: attach to a running Chrome DevTools endpoint")
	cmd.Flags().StringVar(&o.profileDir, "profile", "", "whatsapp-web: Chrome profile directory holding the linked session")
	cmd.Flags().BoolVar(&o.headless, "headless", false, "whatsapp-web: launch Chrome without a window")
	cmd.Flags().StringVar(&o.chat, "chat", "", "messages: limit to one chat id or identifier")
	cmd.Flags().StringVar(&o.mailbox, "mailbox", gmail.DefaultMailbox, "gmail: IMAP mailbox to scan")
	cmd.Flags().IntVar(&o.pageSize, "page-size", 0, "messages, gmail: items per screen")
}

// scanSource is a surface that also reports its own changes.
type scanSource interface {
	scanner.Surface
	scanner.EventSource
	Close() error
}

// openSource opens the named surface and returns it with its event package.
func openSource(ctx context.Context, o sourceOptions) (scanSource, string, error) {
	switch strings.ToLower(strings.TrimSpace(o.name)) {
	case sourceWhatsAppWeb:
		web, err := browser.Open(ctx, browser.Options{
			ControlURL:  o.controlURL,
			Headless:    o.headless,
			UserDataDir: o.profileDir,
		}, logger)
		if err != nil {
			return nil, "", err
		}
		return web, browser.Package, nil
	case sourceMessages:
		src, err := messages.Open(ctx, messages.Options{Chat: o.chat, PageSize: o.pageSize}, logger)
		if err != nil {
			return nil, "", err
		}
		return src, messages.Package, nil
	case sourceGmail:
		creds, err := gmail.LoadCredentials()
		if err != nil {
			return nil, "", err
		}
		mb, err := gmail.OpenMailbox(ctx, creds, gmail.MailboxOptions{Name: o.mailbox, PageSize: o.pageSize}, logger)
		if err != nil {
			return nil, "", err
		}
		return mb, gmail.Package, nil
	default:
		return nil, "", fmt.Errorf("unknown source %q (want %s, %s, or %s)", o.name, sourceWhatsAppWeb, sourceMessages, sourceGmail)
	}
}

// scanPrinter prints scanner progress and forwards the session summary.
type scanPrinter struct {
	out      io.Writer
	finished chan scanner.Summary
}

func newScanPrinter(out io.Writer) *scanPrinter {
	return &scanPrinter{out: out, finished: make(chan scanner.Summary, 1)}
}

func (p *scanPrinter) ScanStatus(text string) {
	fmt.Fprintln(p.out, gray(text))
}

func (p *scanPrinter) ScanFinished(s scanner.Summary) {
	select {
	case p.finished <- s:
	default:
	}
}

func printNumbers(out io.Writer, nums scanner.Numbers) {
	saved := make(map[string]bool, len(nums.Saved))
	for _, n := range nums.Saved {
		saved[n] = true
	}
	for _, n := range nums.Detected {
		badge := yellow("unsaved")
		if saved[n] {
			badge = green("saved")
		}
		fmt.Fprintf(out, "  %-20s %s\n", n, badge)
	}
}

var (
	scanSourceOpts sourceOptions
	scanList       bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scroll a surface and save every unknown phone number",
	Long: `Start a live scan session. The surface is scrolled until the scroll limit
is reached or no new numbers show up for a while. Unknown numbers are saved as
sequentially named entries (CLAUD_001, CLAUD_002, ...). Press Ctrl-C to stop
early; the session summary is printed either way.`,
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
		summary, nums, err := runScanSession(ctx, cfg, scanSourceOpts, store, newWriter(cfg, store), out)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, bold(summary.String()))
		if scanList {
			printNumbers(out, nums)
		}
		notifier := buildNotifier(cfg, io.Discard)
		if err := notifier.Notify(context.WithoutCancel(ctx), "Contact scan complete", summary.String()); err != nil {
			logger.Warn("sending scan summary failed", zap.Error(err))
		}
		return nil
	},
}

// runScanSession runs one session to completion. Cancelling ctx stops the
// session early and still returns its summary.
func runScanSession(ctx context.Context, cfg config.Config, o sourceOptions, store *addressbook.SQLiteStore, writer *addressbook.Writer, out io.Writer) (scanner.Summary, scanner.Numbers, error) {
	src, pkg, err := openSource(ctx, o)
	if err != nil {
		return scanner.Summary{}, scanner.Numbers{}, err
	}
	defer src.Close()

	scfg := scanConfig(cfg)
	scfg.Packages = append(scfg.Packages, pkg)
	printer := newScanPrinter(out)
	s, err := scanner.New(src, store, writer,
		scanner.WithConfig(scfg),
		scanner.WithEvents(src),
		scanner.WithLogger(logger),
		scanner.WithObserver(printer))
	if err != nil {
		return scanner.Summary{}, scanner.Numbers{}, err
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return s.Run(runCtx) })
	defer func() {
		stopRun()
		_ = g.Wait()
	}()

	if err := s.Start(ctx); err != nil {
		return scanner.Summary{}, scanner.Numbers{}, err
	}

	var summary scanner.Summary
	select {
	case summary = <-printer.finished:
	case <-ctx.Done():
		logger.Info("stopping scan")
		summary, err = s.Stop(context.Background())
		if err != nil {
			// The session ended on its own while the stop was in flight.
			summary = <-printer.finished
		}
	}
	nums, err := s.Numbers(context.Background())
	if err != nil {
		return summary, scanner.Numbers{}, err
	}
	return summary, nums, nil
}

func init() {
	scanSourceOpts.register(scanCmd, "source", sourceWhatsAppWeb)
	scanCmd.Flags().BoolVar(&scanList, "list", false, "List every detected number with its saved/unsaved badge")
	rootCmd.AddCommand(scanCmd)
}

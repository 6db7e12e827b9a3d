package gmail_test

import (
	"context"

	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/gmail"
	"github.com/spachava753/contactsaver/reconcile"
	"github.com/spachava753/contactsaver/remote"
	"github.com/spachava753/contactsaver/scanner"
)

var _ reconcile.Notifier = (*gmail.Notifier)(nil)
var _ scanner.Surface = (*gmail.Mailbox)(nil)
var _ scanner.EventSource = (*gmail.Mailbox)(nil)

func composeScanInbox(ctx context.Context, store *addressbook.SQLiteStore, logger *zap.Logger) (scanner.Summary, error) {
	creds, err := gmail.LoadCredentials()
	if err != nil {
		return scanner.Summary{}, err
	}
	mailbox, err := gmail.OpenMailbox(ctx, creds, gmail.MailboxOptions{Name: "[Gmail]/All Mail"}, logger)
	if err != nil {
		return scanner.Summary{}, err
	}
	defer mailbox.Close()

	cfg := scanner.DefaultConfig()
	cfg.Packages = []string{gmail.Package}
	summaries := make(chan scanner.Summary, 1)
	s, err := scanner.New(mailbox, store, addressbook.NewWriter(store),
		scanner.WithConfig(cfg),
		scanner.WithEvents(mailbox),
		scanner.WithObserver(summaryObserver(summaries)))
	if err != nil {
		return scanner.Summary{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(runCtx)
	if err := s.Start(ctx); err != nil {
		return scanner.Summary{}, err
	}
	select {
	case sum := <-summaries:
		return sum, nil
	case <-ctx.Done():
		return scanner.Summary{}, ctx.Err()
	}
}

func composeSyncWithEmail(ctx context.Context, client *remote.Client, store *addressbook.SQLiteStore) (reconcile.Result, error) {
	creds, err := gmail.LoadCredentials()
	if err != nil {
		return reconcile.Result{}, err
	}
	notifier, err := gmail.NewNotifier(creds)
	if err != nil {
		return reconcile.Result{}, err
	}
	runner := reconcile.NewRunner(client, store, addressbook.NewWriter(store), reconcile.WithNotifier(notifier))
	return runner.RunOnce(ctx)
}

type summaryObserver chan scanner.Summary

func (o summaryObserver) ScanStatus(string) {}

func (o summaryObserver) ScanFinished(s scanner.Summary) {
	select {
	case o <- s:
	default:
	}
}

var (
	_ = composeScanInbox
	_ = composeSyncWithEmail
)

// Package gmail reads a Gmail mailbox as a scan surface and mails sync
// summaries.
//
// The package exposes two pieces built on Gmail IMAP and SMTP:
//
//   - Mailbox: a read-only scanner surface over one IMAP mailbox.
//   - Notifier: plain-text summary emails sent after a sync or scan pass.
//
// # Authentication
//
// Runtime credentials are read from environment variables by
// [LoadCredentials]:
//
//   - GMAIL_ADDRESS
//   - GMAIL_APP_PASSWORD
//
// Google shows app passwords in groups of four; the spaces are dropped.
//
// # Mailbox Surface
//
// [OpenMailbox] logs in over IMAPS and selects the mailbox read-only, so a
// scan never marks mail as seen. The returned [*Mailbox] satisfies both
// scanner.Surface and scanner.EventSource:
//
//   - Root fetches one page of messages, newest first. A message node carries
//     the subject as text and the sender address as description, with the
//     sender name and the decoded body (plain text preferred over HTML,
//     capped at MailboxOptions.MaxBodyChars) as children.
//   - Swipe moves one page back in history. Past the oldest page the screen
//     stays put and the gesture still completes, so the scanner's no-new
//     counter ends the session.
//   - Events fires a [Package] content change when a NOOP poll sees the
//     message count grow.
//
// Paging is anchored at the message count seen on open. Mail arriving during
// a scan does not shift pages; call Rewind to re-anchor at the newest message
// and start again from page zero.
//
// # Notifications
//
// [NewNotifier] sends to the given recipients, or to the account itself when
// none are given. Notify builds a single text/plain message with a Q-encoded
// subject and delivers it through smtp.gmail.com:465.
//
// # Composition Example
//
// Scan the whole archive for unknown numbers:
//
//	creds, err := gmail.LoadCredentials()
//	if err != nil {
//		return err
//	}
//	mailbox, err := gmail.OpenMailbox(ctx, creds, gmail.MailboxOptions{Name: "[Gmail]/All Mail"}, logger)
//	if err != nil {
//		return err
//	}
//	defer mailbox.Close()
//
//	cfg := scanner.DefaultConfig()
//	cfg.Packages = []string{gmail.Package}
//	s, err := scanner.New(mailbox, store, addressbook.NewWriter(store),
//		scanner.WithConfig(cfg),
//		scanner.WithEvents(mailbox))
//
// Mail the reconciliation result:
//
//	notifier, err := gmail.NewNotifier(creds)
//	if err != nil {
//		return err
//	}
//	runner := reconcile.NewRunner(client, store, addressbook.NewWriter(store), reconcile.WithNotifier(notifier))
//	res, err := runner.RunOnce(ctx)
package gmail

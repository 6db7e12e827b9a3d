// Package scanner implements the live scan state machine: it reads a content
// tree from an observed messaging screen, extracts phone-number identifiers,
// and saves new ones into the address book under a bounded budget while
// scrolling the screen until it stops yielding numbers.
//
// # Model
//
// A [Scanner] is either idle or scanning. [Scanner.Start] begins a fresh
// [Session]: it loads an [addressbook.Matcher] snapshot, runs one scan pass,
// and schedules the scroll loop after [Config.InitialDelay]. Each scan pass
// walks the tree depth-first (text and description of every node) and applies
// the decision rule to every identifier not seen before in the session:
//
//   - already in the address book: recorded as unsaved
//   - under budget: created as a sequenced entry (CLAUD_001, CLAUD_002, ...)
//   - budget exhausted or write failed: recorded as unsaved
//
// # Scroll Loop
//
// Before every swipe the loop checks its stop conditions: a hard stop at
// [Config.MaxScrolls] completed swipes, and an early stop once
// [Config.MinScrolls] is reached and [Config.NoNewThreshold] consecutive scan
// passes found nothing new. A completed swipe is followed by
// [Config.ScrollDelay] and a scan pass; a cancelled swipe is retried after
// [Config.RetryDelay] with a scan pass but is not counted.
//
// # Concurrency
//
// [Scanner.Run] owns all session state on one goroutine. UI-change events from
// an [EventSource], timer expirations, swipe results, and the command methods
// ([Scanner.Start], [Scanner.Stop], [Scanner.Notify], [Scanner.Status],
// [Scanner.Numbers]) are serialized through it. Swipes run on a helper
// goroutine bound to the session context, so stopping a session cancels them
// and discards their results.
//
// # Surfaces
//
// Any screen that can produce a [Node] tree and scroll can be scanned. This
// module ships three: [github.com/spachava753/contactsaver/browser] (WhatsApp
// Web via a headless browser), [github.com/spachava753/contactsaver/macos/messages]
// (the local Messages database), and [github.com/spachava753/contactsaver/gmail]
// (an IMAP mailbox).
//
// # Composition Example
//
//	store, _ := addressbook.OpenSQLite("contacts.db")
//	writer := addressbook.NewWriter(store)
//	s, err := scanner.New(surface, store, writer, scanner.WithEvents(surface))
//	if err != nil {
//		return err
//	}
//	go s.Run(ctx)
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	<-done
//	summary, err := s.Stop(ctx)
package scanner

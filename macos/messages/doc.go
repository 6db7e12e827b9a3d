// Package messages scans the macOS Messages history for phone numbers.
//
// [Open] opens ~/Library/Messages/chat.db read-only (SQLite through
// github.com/mattn/go-sqlite3, CGO required) and exposes it as a scanner
// surface:
//
//   - Root returns the current page of messages, newest first. Each message
//     node carries the body as text and the sender handle as description.
//   - Swipe moves one page back in history. Past the oldest page the screen
//     stays put, so the scanner's no-new counter ends the session.
//   - Events fires [Package] content changes whenever a message row is added.
//
// Options.Chat narrows the surface to one conversation. Reading chat.db
// requires Full Disk Access for the calling process (System Settings ->
// Privacy & Security -> Full Disk Access).
//
// # Composition Example
//
//	src, err := messages.Open(ctx, messages.Options{PageSize: 100}, logger)
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	cfg := scanner.DefaultConfig()
//	cfg.Packages = []string{messages.Package}
//	s, err := scanner.New(src, store, writer, scanner.WithConfig(cfg), scanner.WithEvents(src))
package messages

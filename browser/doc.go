// Package browser scans WhatsApp Web through a Chrome DevTools session.
//
// [Open] launches Chrome (or attaches to one through Options.ControlURL) and
// opens web.whatsapp.com. The resulting [WhatsAppWeb] plugs into the scanner:
//
//   - Root snapshots the visible DOM as a tree. Node text is an element's own
//     text; the description is its aria-label or title.
//   - Swipe moves the pointer over the chat pane and turns the mouse wheel.
//     A swipe that did not move a pane with more content is cancelled.
//   - Events reports content changes and scrolls seen by an in-page
//     MutationObserver, polled every Options.PollInterval, with the package
//     identity [Package].
//
// WhatsApp Web requires a linked device. Launch once without Headless, scan
// the QR code, and reuse the same Options.UserDataDir afterwards.
//
// # Composition Example
//
//	web, err := browser.Open(ctx, browser.Options{UserDataDir: profile}, logger)
//	if err != nil {
//		return err
//	}
//	defer web.Close()
//
//	cfg := scanner.DefaultConfig()
//	cfg.Packages = append(cfg.Packages, browser.Package)
//	s, err := scanner.New(web, store, writer, scanner.WithConfig(cfg), scanner.WithEvents(web))
package browser

// Package contactsaver is a lightweight index for the subpackages in this
// module.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete components, or run the CLI in cmd/contactsaver.
//
// Available subpackages:
//   - github.com/spachava753/contactsaver/phone
//     Phone-number extraction, normalization, and fuzzy equality.
//   - github.com/spachava753/contactsaver/addressbook
//     SQLite address book, snapshot matcher, and the sequenced/upsert writer.
//   - github.com/spachava753/contactsaver/scanner
//     Live scan state machine: scroll a surface, save unknown numbers.
//   - github.com/spachava753/contactsaver/browser
//     WhatsApp Web scan surface over Chrome DevTools.
//   - github.com/spachava753/contactsaver/macos/messages
//     macOS Messages history scan surface.
//   - github.com/spachava753/contactsaver/gmail
//     Gmail mailbox scan surface and email summary notifier.
//   - github.com/spachava753/contactsaver/remote
//     Contacts server API client.
//   - github.com/spachava753/contactsaver/reconcile
//     Reconciliation pass and periodic scheduler.
//   - github.com/spachava753/contactsaver/config
//     YAML settings, environment overrides, and change watching.
//   - github.com/spachava753/contactsaver/logging
//     zap logger construction.
//
// Discovery workflow:
//   - Run: go doc github.com/spachava753/contactsaver
//   - Then drill in with:
//     go doc github.com/spachava753/contactsaver/scanner
//     go doc github.com/spachava753/contactsaver/reconcile
package contactsaver

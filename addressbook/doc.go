// Package addressbook is the local address book: a queryable, writable store of
// contact entries plus the matching and write policies built on top of it.
//
// The package exposes four pieces:
//
//   - Store: the storage primitive (list phones, find by phone, atomic create,
//     update display name, get). SQLiteStore is the bundled implementation.
//   - Matcher: an in-memory snapshot of stored numbers answering "is this
//     number already known?" with exact and trailing-digit equality.
//   - Writer: the two write policies, sequenced create and name-aware upsert.
//   - Locks: per-number mutual exclusion around check-then-write.
//
// The intended composition model is:
//
//	load matcher -> lookup -> lock -> re-check store -> create/update -> add to matcher
//
// # Atomicity
//
// Store.Create applies the entry row, display name, phone, and optional email
// inside one transaction. Either every step commits or none does; callers never
// observe an entry without a name or phone.
//
// # Concurrency
//
// Store implementations must be safe for concurrent use. Matcher is not; each
// owner (a scan session, a reconciliation pass) loads its own snapshot. Writer
// serializes the check-then-write sequence per number through Locks, so a scan
// session and a reconciliation pass sharing one Writer cannot both create an
// entry for the same number.
//
// # Composition Examples
//
// 1) Save a scanned number under a sequenced name:
//
//	store, err := addressbook.OpenSQLite("contacts.db")
//	if err != nil {
//		// handle
//	}
//	defer store.Close()
//
//	matcher, err := addressbook.LoadMatcher(ctx, store)
//	if err != nil {
//		// handle
//	}
//	if !matcher.Known("+14155552671") {
//		w := addressbook.NewWriter(store)
//		ref, created, err := w.CreateSequenced(ctx, 1, "+14155552671")
//		if err == nil && created {
//			matcher.Add("+14155552671", ref)
//		}
//	}
//
// 2) Upsert a contact received from elsewhere:
//
//	res, err := w.Upsert(ctx, matcher, addressbook.Candidate{
//		Name:  "Alice",
//		Phone: "+11234567890",
//	})
//	if err != nil {
//		// handle
//	}
//	_ = res.Created
package addressbook

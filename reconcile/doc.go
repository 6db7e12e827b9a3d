// Package reconcile applies the remote pending-contacts queue to the local
// address book.
//
// A [Runner] pass fetches pending contacts, upserts each one by phone number
// (renaming a matching entry or creating a new one), reports every outcome in
// one batch, and records the completion time. Outcomes keep fetch order and
// one contact's failure never stops the rest. A failed report does not undo
// local writes.
//
// A [Scheduler] runs passes on demand through [Scheduler.RunNow] and
// periodically through [Scheduler.Run]. Only one periodic job exists;
// [Scheduler.Apply] replaces or cancels it. Each periodic firing reloads the
// settings, so turning auto-sync off takes effect on the next tick. Periodic
// failures are wrapped in [ErrRetryable] and retried with exponential backoff
// capped at the interval; on-demand failures are returned as is.
//
// # Composition Example
//
//	runner := reconcile.NewRunner(client, store, addressbook.NewWriter(store),
//		reconcile.WithLastSync(settings))
//	res, err := runner.RunOnce(ctx)
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Summary()) // "2 contacts saved, 0 failed"
package reconcile

// Package remote is a client for the contacts server's mobile API.
//
// All endpoints live under <server>/api/mobile/ and authenticate with the
// X-API-Key header:
//
//	GET  verify.php                      Verify
//	GET  contacts.php?action=pending     FetchPending
//	GET  contacts.php?action=all         Stats
//	POST contacts.php?action=sync        Report
//	POST contacts.php?action=bulk-sync   ReportBatch
//	POST contacts.php?action=add         AddContact
//
// Every response is a JSON envelope with a success flag and an optional
// message or error string. Transport failures, non-2xx statuses, malformed
// bodies, and unsuccessful envelopes are all returned as [*Error]. A missing
// API key is [ErrMissingAPIKey] and never reaches the network. The client
// does not retry; callers own retry policy.
//
// # Composition Example
//
//	c, err := remote.New(cfg.ServerURL, cfg.APIKey, remote.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	pending, err := c.FetchPending(ctx)
//	if err != nil {
//		return err
//	}
//	outcomes := make([]remote.Outcome, 0, len(pending))
//	for _, p := range pending {
//		outcomes = append(outcomes, remote.Synced(p.ID, "local-id"))
//	}
//	_, err = c.ReportBatch(ctx, outcomes)
package remote

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/remote"
)

// ErrRetryable marks a periodic pass that failed unexpectedly and should be
// attempted again with backoff.
var ErrRetryable = errors.New("reconcile: retryable failure")

// Remote is the part of [*remote.Client] a pass needs.
type Remote interface {
	FetchPending(ctx context.Context) ([]remote.Contact, error)
	ReportBatch(ctx context.Context, outcomes []remote.Outcome) (remote.Response, error)
}

// Upserter applies the name-aware upsert. [*addressbook.Writer] satisfies it.
type Upserter interface {
	Upsert(ctx context.Context, matcher *addressbook.Matcher, c addressbook.Candidate) (addressbook.WriteResult, error)
}

// LastSyncRecorder persists the completion time of a pass. [*config.Store]
// satisfies it.
type LastSyncRecorder interface {
	SetLastSync(t time.Time) error
}

// Notifier presents a short completion message.
type Notifier interface {
	Notify(ctx context.Context, title string, body string) error
}

// Result describes one completed pass.
type Result struct {
	// Outcomes is one entry per fetched contact, in fetch order.
	Outcomes []remote.Outcome
	Synced   int
	Failed   int
	// ReportErr is set when the batch report failed. Local writes stand.
	ReportErr  error
	FinishedAt time.Time
}

// Summary renders the counts as "N contacts saved, M failed".
func (r Result) Summary() string {
	return fmt.Sprintf("%d contacts saved, %d failed", r.Synced, r.Failed)
}

// Runner executes reconciliation passes.
type Runner struct {
	remote   Remote
	store    addressbook.PhoneLister
	writer   Upserter
	lastSync LastSyncRecorder
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// RunnerOption customizes a [Runner].
type RunnerOption func(*Runner)

// WithLastSync records completion times in rec.
func WithLastSync(rec LastSyncRecorder) RunnerOption {
	return func(r *Runner) { r.lastSync = rec }
}

// WithNotifier sends a summary after every pass that processed contacts.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithLogger sets the runner logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner returns a Runner reconciling rem against the address book.
func NewRunner(rem Remote, store addressbook.PhoneLister, writer Upserter, opts ...RunnerOption) *Runner {
	r := &Runner{
		remote: rem,
		store:  store,
		writer: writer,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs one pass: fetch pending contacts, upsert each, report the
// outcomes in one batch, and record the completion time.
//
// A failed fetch or snapshot load returns an error and leaves the last-sync
// time untouched. Per-contact failures and a failed report do not.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	pending, err := r.remote.FetchPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: fetching pending contacts failed: %w", err)
	}
	if len(pending) == 0 {
		res := Result{FinishedAt: r.now()}
		r.recordLastSync(res.FinishedAt)
		r.logger.Debug("no pending contacts")
		return res, nil
	}

	matcher, err := addressbook.LoadMatcher(ctx, r.store)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: loading address book snapshot failed: %w", err)
	}

	res := Result{Outcomes: make([]remote.Outcome, 0, len(pending))}
	for _, c := range pending {
		wr, err := r.writer.Upsert(ctx, matcher, addressbook.Candidate{
			Name:  c.Name,
			Phone: c.Phone,
			Email: c.Email,
		})
		if err != nil {
			r.logger.Warn("contact sync failed", zap.Int64("contact_id", c.ID), zap.String("phone", c.Phone), zap.Error(err))
			res.Outcomes = append(res.Outcomes, remote.Failed(c.ID))
			res.Failed++
			continue
		}
		r.logger.Debug("contact synced",
			zap.Int64("contact_id", c.ID),
			zap.String("id", wr.Ref.ID),
			zap.Bool("created", wr.Created))
		res.Outcomes = append(res.Outcomes, remote.Synced(c.ID, wr.Ref.ID))
		res.Synced++
	}

	if _, err := r.remote.ReportBatch(ctx, res.Outcomes); err != nil {
		res.ReportErr = err
		r.logger.Warn("reporting sync outcomes failed", zap.Int("outcomes", len(res.Outcomes)), zap.Error(err))
	}

	res.FinishedAt = r.now()
	r.recordLastSync(res.FinishedAt)
	r.logger.Info("sync pass complete", zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, "Contact sync complete", res.Summary()); err != nil {
			r.logger.Warn("sync notification failed", zap.Error(err))
		}
	}
	return res, nil
}

func (r *Runner) recordLastSync(t time.Time) {
	if r.lastSync == nil {
		return
	}
	if err := r.lastSync.SetLastSync(t); err != nil {
		r.logger.Warn("recording last sync time failed", zap.Error(err))
	}
}

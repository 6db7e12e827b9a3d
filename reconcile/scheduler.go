package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/config"
	"github.com/spachava753/contactsaver/remote"
)

// DefaultBackoff is the first retry delay after a failed periodic pass. It
// doubles per consecutive failure and never exceeds the schedule interval.
const DefaultBackoff = 30 * time.Second

// Settings loads the current configuration. [*config.Store] satisfies it.
type Settings interface {
	Load() (config.Config, error)
}

// PassFunc runs one pass with a freshly loaded configuration.
type PassFunc func(ctx context.Context, cfg config.Config) (Result, error)

// Schedule describes the periodic job. A zero Interval means no job.
type Schedule struct {
	Interval time.Duration
}

// ScheduleFor returns the job cfg asks for: its interval when auto-sync is on
// and an API key is set, none otherwise.
func ScheduleFor(cfg config.Config) Schedule {
	if !cfg.SyncEnabled() {
		return Schedule{}
	}
	return Schedule{Interval: cfg.Interval()}
}

// Scheduler triggers passes on demand and on a periodic schedule. At most one
// pass runs at a time and at most one periodic job exists.
type Scheduler struct {
	settings Settings
	pass     PassFunc
	logger   *zap.Logger
	backoff  time.Duration

	passMu sync.Mutex

	mu      sync.Mutex
	applied *Schedule
	pending *Schedule
	wake    chan struct{}
	fired   func(err error)
}

// SchedulerOption customizes a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithBackoff sets the first retry delay.
func WithBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPeriodicHook calls fn after every periodic firing with its result.
func WithPeriodicHook(fn func(err error)) SchedulerOption {
	return func(s *Scheduler) { s.fired = fn }
}

// NewScheduler returns a Scheduler running pass with configuration from
// settings.
func NewScheduler(settings Settings, pass PassFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		settings: settings,
		pass:     pass,
		logger:   zap.NewNop(),
		backoff:  DefaultBackoff,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunNow runs one pass immediately, regardless of the auto-sync flag, and
// returns its error directly. A missing API key fails with
// [remote.ErrMissingAPIKey] before any network call.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	cfg, err := s.settings.Load()
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{}, remote.ErrMissingAPIKey
	}
	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.pass(ctx, cfg)
}

// Apply replaces the periodic job with the one cfg asks for. A config whose
// schedule equals the last applied one is a no-op, so rewrites of unrelated
// fields such as the last-sync time neither delay the next firing nor reset
// the retry backoff.
func (s *Scheduler) Apply(cfg config.Config) {
	s.replace(ScheduleFor(cfg), false)
}

// Reschedule replaces the periodic job. It never blocks; the latest schedule
// wins.
func (s *Scheduler) Reschedule(sch Schedule) {
	s.replace(sch, true)
}

func (s *Scheduler) replace(sch Schedule, force bool) {
	s.mu.Lock()
	if !force && s.applied != nil && *s.applied == sch {
		s.mu.Unlock()
		s.logger.Debug("periodic sync unchanged", zap.Duration("interval", sch.Interval))
		return
	}
	s.applied = &sch
	s.pending = &sch
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the periodic job until ctx is cancelled. Periodic passes are not
// interrupted by cancellation; Run returns after the pass in flight ends.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		current  Schedule
		failures int
		timer    *time.Timer
		timerC   <-chan time.Time
	)
	arm := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
			s.mu.Lock()
			next := s.pending
			s.pending = nil
			s.mu.Unlock()
			if next == nil {
				continue
			}
			current, failures = *next, 0
			if current.Interval <= 0 {
				disarm()
				s.logger.Info("periodic sync cancelled")
				continue
			}
			arm(current.Interval)
			s.logger.Info("periodic sync scheduled", zap.Duration("interval", current.Interval))
		case <-timerC:
			timer, timerC = nil, nil
			err := s.runPeriodic(context.WithoutCancel(ctx))
			if s.fired != nil {
				s.fired(err)
			}
			if errors.Is(err, ErrRetryable) {
				failures++
				delay := s.retryDelay(failures, current.Interval)
				s.logger.Warn("periodic sync failed, retrying", zap.Int("failures", failures), zap.Duration("delay", delay), zap.Error(err))
				arm(delay)
				continue
			}
			failures = 0
			arm(current.Interval)
		}
	}
}

// runPeriodic is a no-op success when auto-sync is off or no API key is set.
// The check uses the configuration at firing time.
func (s *Scheduler) runPeriodic(ctx context.Context) error {
	cfg, err := s.settings.Load()
	if err != nil {
		return fmt.Errorf("%w: loading config: %w", ErrRetryable, err)
	}
	if !cfg.SyncEnabled() {
		s.logger.Debug("periodic sync skipped", zap.Bool("auto_sync", cfg.AutoSync))
		return nil
	}

	s.passMu.Lock()
	defer s.passMu.Unlock()
	res, err := s.pass(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	s.logger.Info("periodic sync done", zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
	return nil
}

func (s *Scheduler) retryDelay(failures int, interval time.Duration) time.Duration {
	d := s.backoff
	for i := 1; i < failures && d < interval; i++ {
		d *= 2
	}
	if interval > 0 && d > interval {
		d = interval
	}
	return d
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
)

// Scanner is the live scan state machine. All session state is owned by the
// goroutine running [Scanner.Run]; the other methods send commands to it.
type Scanner struct {
	cfg       Config
	surface   Surface
	events    EventSource
	store     addressbook.PhoneLister
	writer    Writer
	logger    *zap.Logger
	observers []Observer

	cmds    chan func(*loop)
	done    chan struct{}
	running atomic.Bool
}

// Option customizes a [Scanner].
type Option func(*Scanner)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Scanner) { s.cfg = cfg }
}

// WithEvents subscribes the scanner to src.
func WithEvents(src EventSource) Option {
	return func(s *Scanner) { s.events = src }
}

// WithLogger sets the scanner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers o for status text and summaries.
func WithObserver(o Observer) Option {
	return func(s *Scanner) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New returns a Scanner reading surface, checking numbers against store, and
// saving through writer. Call [Scanner.Run] before issuing commands.
func New(surface Surface, store addressbook.PhoneLister, writer Writer, opts ...Option) (*Scanner, error) {
	if surface == nil {
		return nil, errors.New("scanner: surface is required")
	}
	if store == nil {
		return nil, errors.New("scanner: address book store is required")
	}
	if writer == nil {
		return nil, errors.New("scanner: writer is required")
	}
	s := &Scanner{
		cfg:     DefaultConfig(),
		surface: surface,
		store:   store,
		writer:  writer,
		logger:  zap.NewNop(),
		cmds:    make(chan func(*loop)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run processes commands, events, timers, and gesture results until ctx is
// cancelled. An active session is ended with [StopShutdown]. Run may be called
// once.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scanner: Run called more than once")
	}
	defer close(s.done)

	l := &loop{
		s:        s,
		ctx:      ctx,
		gestures: make(chan gestureResult),
	}
	if s.events != nil {
		l.events = s.events.Events()
	}
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.cmds:
			fn(l)
		case ev, ok := <-l.events:
			if !ok {
				l.events = nil
				continue
			}
			l.handleEvent(ev)
		case <-l.timerC:
			l.fire()
		case res := <-l.gestures:
			l.handleGesture(res)
		}
	}
}

// Done is closed when Run returns.
func (s *Scanner) Done() <-chan struct{} {
	return s.done
}

// Start begins a fresh session, discarding any previous one. It loads the
// address-book snapshot and performs the first scan pass before returning.
func (s *Scanner) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	if err := s.do(ctx, func(l *loop) { errc <- l.start() }); err != nil {
		return err
	}
	return <-errc
}

// Stop ends the active session and returns its summary. No scan pass, timer,
// or gesture callback of that session runs after Stop returns.
func (s *Scanner) Stop(ctx context.Context) (Summary, error) {
	type result struct {
		summary Summary
		err     error
	}
	resc := make(chan result, 1)
	err := s.do(ctx, func(l *loop) {
		if !l.scanning {
			resc <- result{err: ErrNotScanning}
			return
		}
		resc <- result{summary: l.end(StopRequested)}
	})
	if err != nil {
		return Summary{}, err
	}
	res := <-resc
	return res.summary, res.err
}

// Notify delivers a UI-change event as if it came from the event source.
func (s *Scanner) Notify(ctx context.Context, ev Event) error {
	return s.do(ctx, func(l *loop) { l.handleEvent(ev) })
}

// Status returns the live counters.
func (s *Scanner) Status(ctx context.Context) (Status, error) {
	resc := make(chan Status, 1)
	if err := s.do(ctx, func(l *loop) { resc <- l.status() }); err != nil {
		return Status{}, err
	}
	return <-resc, nil
}

// Numbers lists the identifiers of the active or most recent session.
func (s *Scanner) Numbers(ctx context.Context) (Numbers, error) {
	resc := make(chan Numbers, 1)
	err := s.do(ctx, func(l *loop) {
		if l.session == nil {
			resc <- Numbers{}
			return
		}
		resc <- l.session.Numbers()
	})
	if err != nil {
		return Numbers{}, err
	}
	return <-resc, nil
}

func (s *Scanner) do(ctx context.Context, fn func(*loop)) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type step int

const (
	stepSwipe step = iota // check stop conditions, then swipe
	stepScan              // scan, then stepSwipe
)

type gestureResult struct {
	gen     uint64
	gesture Gesture
	err     error
}

// loop is the state owned by the Run goroutine.
type loop struct {
	s   *Scanner
	ctx context.Context

	session  *Session
	scanning bool
	gen      uint64

	sessionCtx    context.Context
	cancelSession context.CancelFunc

	timer  *time.Timer
	timerC <-chan time.Time
	next   step

	events   <-chan Event
	gestures chan gestureResult
	swiping  bool
	inflight sync.WaitGroup
}

func (l *loop) start() error {
	if l.scanning {
		l.end(StopRestarted)
	}

	sessionCtx, cancel := context.WithCancel(l.ctx)
	matcher, err := addressbook.LoadMatcher(sessionCtx, l.s.store)
	if err != nil {
		cancel()
		return fmt.Errorf("scanner: loading address book snapshot failed: %w", err)
	}

	l.gen++
	l.session = NewSession(l.s.cfg.Budget, matcher, l.s.writer, l.s.logger)
	l.sessionCtx, l.cancelSession = sessionCtx, cancel
	l.scanning = true
	l.s.logger.Info("scanning started", zap.Int("known", matcher.Len()), zap.Int("budget", l.s.cfg.Budget))
	l.notifyStatus("Scanning started...")

	l.scan()
	l.schedule(l.s.cfg.InitialDelay, stepSwipe)
	return nil
}

func (l *loop) end(reason StopReason) Summary {
	l.scanning = false
	l.gen++
	l.cancelTimer()
	l.cancelSession()
	l.swiping = false

	summary := l.session.Summary(reason)
	l.s.logger.Info("scanning stopped",
		zap.String("reason", string(reason)),
		zap.Int("detected", summary.Detected),
		zap.Int("saved", summary.Saved),
		zap.Int("unsaved", summary.Unsaved),
		zap.Int("scrolls", summary.Scrolls))
	for _, o := range l.s.observers {
		o.ScanFinished(summary)
	}
	return summary
}

func (l *loop) shutdown() {
	if l.scanning {
		l.end(StopShutdown)
	}
	l.inflight.Wait()
}

func (l *loop) handleEvent(ev Event) {
	if !l.scanning || !l.s.cfg.accepts(ev) {
		return
	}
	l.scan()
}

func (l *loop) scan() {
	root, err := l.s.surface.Root(l.sessionCtx)
	if err != nil {
		l.s.logger.Debug("reading content tree failed", zap.Error(err))
		return
	}
	if root == nil {
		return
	}
	if found := l.session.Scan(l.sessionCtx, root); found > 0 {
		l.s.logger.Debug("scan pass found new numbers", zap.Int("new", found))
	}
	l.notifyStatus(fmt.Sprintf("Found: %d", len(l.session.detected)))
}

func (l *loop) schedule(d time.Duration, next step) {
	l.cancelTimer()
	l.timer = time.NewTimer(d)
	l.timerC = l.timer.C
	l.next = next
}

func (l *loop) cancelTimer() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = nil
	l.timerC = nil
}

func (l *loop) fire() {
	l.timer, l.timerC = nil, nil
	if !l.scanning {
		return
	}
	switch l.next {
	case stepScan:
		l.scan()
		l.advance()
	case stepSwipe:
		l.advance()
	}
}

// advance stops the session when a stop condition holds and otherwise
// dispatches the next swipe.
func (l *loop) advance() {
	cfg, sess := l.s.cfg, l.session
	if sess.scrolls >= cfg.MaxScrolls {
		l.end(StopMaxScrolls)
		return
	}
	if sess.scrolls >= cfg.MinScrolls && sess.noNew >= cfg.NoNewThreshold {
		l.end(StopExhausted)
		return
	}
	if l.swiping {
		return
	}

	l.swiping = true
	gen, ctx := l.gen, l.sessionCtx
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		g, err := l.s.surface.Swipe(ctx)
		select {
		case l.gestures <- gestureResult{gen: gen, gesture: g, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (l *loop) handleGesture(res gestureResult) {
	if res.gen != l.gen || !l.scanning {
		return
	}
	l.swiping = false

	if res.err == nil && res.gesture == GestureCompleted {
		l.session.scrolls++
		l.schedule(l.s.cfg.ScrollDelay, stepScan)
		return
	}
	l.s.logger.Debug("swipe cancelled, retrying", zap.Error(res.err), zap.Int("scrolls", l.session.scrolls))
	l.schedule(l.s.cfg.RetryDelay, stepScan)
}

func (l *loop) status() Status {
	st := Status{Scanning: l.scanning, Text: "Idle"}
	if l.session == nil {
		return st
	}
	sum := l.session.Summary("")
	st.Detected, st.Saved, st.Unsaved, st.Scrolls = sum.Detected, sum.Saved, sum.Unsaved, sum.Scrolls
	st.NoNew = l.session.noNew
	if l.scanning {
		st.Text = fmt.Sprintf("Found: %d", sum.Detected)
	}
	return st
}

func (l *loop) notifyStatus(text string) {
	for _, o := range l.s.observers {
		o.ScanStatus(text)
	}
}

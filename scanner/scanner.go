package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spachava753/contactsaver/addressbook"
)

var (
	// ErrNotScanning is returned by operations that require an active session.
	ErrNotScanning = errors.New("scanner: not scanning")
	// ErrClosed is returned once the event loop started by [Scanner.Run] has exited.
	ErrClosed = errors.New("scanner: closed")
)

// Default packages whose UI-change events trigger scan passes.
const (
	PackageWhatsApp         = "com.whatsapp"
	PackageWhatsAppBusiness = "com.whatsapp.w4b"
)

// Node is one element of an observed content tree.
type Node struct {
	Text        string
	Description string
	Children    []*Node
}

// EventKind classifies a UI-change event.
type EventKind string

const (
	// EventContentChanged fires when the observed surface's content changes.
	EventContentChanged EventKind = "content_changed"
	// EventScrolled fires when the observed surface scrolls.
	EventScrolled EventKind = "scrolled"
	// EventWindowChanged fires on focus or window switches. It never triggers a scan.
	EventWindowChanged EventKind = "window_changed"
)

// Event is a UI-change notification from the observed application.
type Event struct {
	Package string
	Kind    EventKind
}

// Gesture is the outcome of one swipe.
type Gesture int

const (
	// GestureCompleted means the swipe was delivered and the surface moved.
	GestureCompleted Gesture = iota
	// GestureCancelled means the swipe was dropped and should be retried.
	GestureCancelled
)

func (g Gesture) String() string {
	switch g {
	case GestureCompleted:
		return "completed"
	case GestureCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("gesture(%d)", int(g))
	}
}

// Surface is the observed application screen.
type Surface interface {
	// Root returns the current content tree. A nil node with a nil error
	// means nothing is on screen.
	Root(ctx context.Context) (*Node, error)
	// Swipe issues one downward swipe and reports whether it completed.
	Swipe(ctx context.Context) (Gesture, error)
}

// EventSource delivers UI-change events. The channel may be closed when the
// source shuts down.
type EventSource interface {
	Events() <-chan Event
}

// Writer creates sequenced address-book entries. [*addressbook.Writer]
// satisfies it.
type Writer interface {
	CreateSequenced(ctx context.Context, seq int, number string) (ref addressbook.Ref, created bool, err error)
}

// Config tunes a scan session.
type Config struct {
	// Budget is the maximum number of entries created per session.
	Budget int
	// MinScrolls is the number of completed swipes before an early stop is allowed.
	MinScrolls int
	// MaxScrolls is the hard limit on completed swipes.
	MaxScrolls int
	// NoNewThreshold is the number of consecutive scan passes without a new
	// identifier that allows an early stop once MinScrolls is reached.
	NoNewThreshold int

	InitialDelay time.Duration
	ScrollDelay  time.Duration
	RetryDelay   time.Duration

	// Packages filters incoming events by source application.
	Packages []string
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Budget:         2000,
		MinScrolls:     50,
		MaxScrolls:     100,
		NoNewThreshold: 10,
		InitialDelay:   time.Second,
		ScrollDelay:    800 * time.Millisecond,
		RetryDelay:     1500 * time.Millisecond,
		Packages:       []string{PackageWhatsApp, PackageWhatsAppBusiness},
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Budget < 0:
		return fmt.Errorf("scanner: budget must be >= 0, got %d", c.Budget)
	case c.MaxScrolls < 1:
		return fmt.Errorf("scanner: max scrolls must be >= 1, got %d", c.MaxScrolls)
	case c.MinScrolls < 0 || c.MinScrolls > c.MaxScrolls:
		return fmt.Errorf("scanner: min scrolls must be within [0, %d], got %d", c.MaxScrolls, c.MinScrolls)
	case c.NoNewThreshold < 1:
		return fmt.Errorf("scanner: no-new threshold must be >= 1, got %d", c.NoNewThreshold)
	case c.InitialDelay < 0 || c.ScrollDelay < 0 || c.RetryDelay < 0:
		return errors.New("scanner: delays must be >= 0")
	}
	return nil
}

func (c Config) accepts(ev Event) bool {
	if ev.Kind != EventContentChanged && ev.Kind != EventScrolled {
		return false
	}
	return slices.Contains(c.Packages, ev.Package)
}

// StopReason records why a session ended.
type StopReason string

const (
	StopRequested  StopReason = "requested"
	StopMaxScrolls StopReason = "max scrolls reached"
	StopExhausted  StopReason = "no new numbers"
	StopRestarted  StopReason = "restarted"
	StopShutdown   StopReason = "shutdown"
)

// Summary is the end-of-session report.
type Summary struct {
	Detected int
	Saved    int
	Unsaved  int
	Scrolls  int
	Reason   StopReason
}

func (s Summary) String() string {
	return fmt.Sprintf("Scan complete: %d detected, %d saved, %d unsaved (%d scrolls, %s)",
		s.Detected, s.Saved, s.Unsaved, s.Scrolls, s.Reason)
}

// Status is a point-in-time view of the scanner.
type Status struct {
	Scanning bool
	Detected int
	Saved    int
	Unsaved  int
	Scrolls  int
	NoNew    int
	Text     string
}

// Numbers lists the identifiers of the current or most recent session.
// Each slice is sorted.
type Numbers struct {
	Detected []string
	Saved    []string
	Unsaved  []string
}

// Observer receives status updates and session summaries. Calls are made from
// the scanner's event loop and must not block.
type Observer interface {
	ScanStatus(text string)
	ScanFinished(summary Summary)
}

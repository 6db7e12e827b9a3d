package scanner

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/addressbook"
	"github.com/spachava753/contactsaver/logging"
	"github.com/spachava753/contactsaver/phone"
)

// Session is the mutable state of one scan run. It is owned by a single
// goroutine.
//
// Every detected identifier is either saved or in unsaved, so
// Saved()+len(unsaved) == len(detected) holds after each pass.
type Session struct {
	budget  int
	matcher *addressbook.Matcher
	writer  Writer
	logger  *zap.Logger

	detected map[string]struct{}
	unsaved  map[string]struct{}
	saved    []string
	sequence int
	scrolls  int
	noNew    int
}

// NewSession returns an empty session that checks identifiers against matcher
// and creates entries through writer.
func NewSession(budget int, matcher *addressbook.Matcher, writer Writer, logger *zap.Logger) *Session {
	if matcher == nil {
		matcher = addressbook.NewMatcher()
	}
	logger = logging.OrNop(logger)
	return &Session{
		budget:   budget,
		matcher:  matcher,
		writer:   writer,
		logger:   logger,
		detected: make(map[string]struct{}),
		unsaved:  make(map[string]struct{}),
		sequence: 1,
	}
}

// Scan runs one pass over root and returns how many never-before-seen
// identifiers it found. The no-new counter resets when that number is
// positive and increments otherwise.
func (s *Session) Scan(ctx context.Context, root *Node) int {
	found := 0
	walk(root, func(text string) {
		for id := range phone.Extract(text) {
			if s.observe(ctx, id) {
				found++
			}
		}
	})
	if found > 0 {
		s.noNew = 0
	} else {
		s.noNew++
	}
	return found
}

func (s *Session) observe(ctx context.Context, id string) bool {
	if _, seen := s.detected[id]; seen {
		return false
	}
	s.detected[id] = struct{}{}

	switch {
	case s.matcher.Known(id):
		s.unsaved[id] = struct{}{}
		s.logger.Debug("number already in address book", zap.String("phone", id))
	case len(s.saved) < s.budget:
		s.save(ctx, id)
	default:
		s.unsaved[id] = struct{}{}
		s.logger.Debug("save budget exhausted", zap.String("phone", id), zap.Int("budget", s.budget))
	}
	return true
}

func (s *Session) save(ctx context.Context, id string) {
	if s.writer == nil {
		s.unsaved[id] = struct{}{}
		return
	}
	ref, created, err := s.writer.CreateSequenced(ctx, s.sequence, id)
	switch {
	case err != nil:
		s.unsaved[id] = struct{}{}
		s.logger.Warn("save failed", zap.String("phone", id), zap.Error(err))
	case !created:
		// Written by another path after the snapshot was loaded.
		s.unsaved[id] = struct{}{}
		s.matcher.Add(id, ref)
	default:
		s.saved = append(s.saved, id)
		s.sequence++
		s.matcher.Add(id, ref)
		s.logger.Info("saved number", zap.String("phone", id), zap.String("id", ref.ID), zap.Int("saved", len(s.saved)))
	}
}

// Saved returns the number of entries created in this session.
func (s *Session) Saved() int { return len(s.saved) }

// Summary reports the session counters.
func (s *Session) Summary(reason StopReason) Summary {
	return Summary{
		Detected: len(s.detected),
		Saved:    len(s.saved),
		Unsaved:  len(s.unsaved),
		Scrolls:  s.scrolls,
		Reason:   reason,
	}
}

// Numbers lists detected, saved, and unsaved identifiers.
func (s *Session) Numbers() Numbers {
	return Numbers{
		Detected: slices.Sorted(maps.Keys(s.detected)),
		Saved:    slices.Sorted(slices.Values(s.saved)),
		Unsaved:  slices.Sorted(maps.Keys(s.unsaved)),
	}
}

// walk visits the text and description of every node depth-first, parents
// before children and children in order, using an explicit stack.
func walk(root *Node, visit func(text string)) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if n.Text != "" {
			visit(n.Text)
		}
		if n.Description != "" {
			visit(n.Description)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

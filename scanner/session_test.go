package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/contactsaver/addressbook"
)

type fakeWriter struct {
	fail    map[string]bool
	exists  map[string]bool
	created []string
	seqs    []int
}

func (w *fakeWriter) CreateSequenced(_ context.Context, seq int, number string) (addressbook.Ref, bool, error) {
	if w.fail[number] {
		return addressbook.Ref{}, false, errors.New("store unavailable")
	}
	if w.exists[number] {
		return addressbook.Ref{ID: "existing-" + number}, false, nil
	}
	w.created = append(w.created, number)
	w.seqs = append(w.seqs, seq)
	return addressbook.Ref{ID: fmt.Sprintf("id-%d", seq)}, true, nil
}

func textNode(texts ...string) *Node {
	root := &Node{}
	for _, t := range texts {
		root.Children = append(root.Children, &Node{Text: t})
	}
	return root
}

func checkInvariant(t *testing.T, s *Session) {
	t.Helper()
	sum := s.Summary("")
	be.Equal(t, sum.Saved+sum.Unsaved, sum.Detected)
}

func TestSessionBudgetBoundary(t *testing.T) {
	w := &fakeWriter{}
	s := NewSession(2, nil, w, nil)

	found := s.Scan(context.Background(), textNode("A +1 415-555-2671", "B +1 415-555-2672", "C +1 415-555-2673"))
	be.Equal(t, found, 3)

	sum := s.Summary(StopRequested)
	be.Equal(t, sum.Saved, 2)
	be.Equal(t, s.Numbers().Unsaved, []string{"+14155552673"})
	be.Equal(t, w.seqs, []int{1, 2})
	checkInvariant(t, s)
}

func TestSessionKnownNumbersAreUnsaved(t *testing.T) {
	m := addressbook.NewMatcher()
	m.Add("4155552671", addressbook.Ref{ID: "x"})
	w := &fakeWriter{}
	s := NewSession(10, m, w, nil)

	s.Scan(context.Background(), textNode("+1 415 555 2671", "+44 20 7946 0958"))

	n := s.Numbers()
	be.Equal(t, n.Unsaved, []string{"+14155552671"})
	be.Equal(t, n.Saved, []string{"+442079460958"})
	be.Equal(t, len(w.created), 1)
	checkInvariant(t, s)
}

func TestSessionWriteFailureCountsAsUnsaved(t *testing.T) {
	w := &fakeWriter{fail: map[string]bool{"+14155552671": true}}
	s := NewSession(10, nil, w, nil)

	s.Scan(context.Background(), textNode("+1 415 555 2671", "+1 415 555 2672"))

	n := s.Numbers()
	be.Equal(t, n.Unsaved, []string{"+14155552671"})
	be.Equal(t, n.Saved, []string{"+14155552672"})
	// The failed write does not consume a sequence number.
	be.Equal(t, w.seqs, []int{1})
	checkInvariant(t, s)
}

func TestSessionConcurrentCreateCountsAsUnsaved(t *testing.T) {
	w := &fakeWriter{exists: map[string]bool{"+14155552671": true}}
	s := NewSession(10, nil, w, nil)

	s.Scan(context.Background(), textNode("+1 415 555 2671"))
	be.Equal(t, s.Saved(), 0)
	be.Equal(t, s.Numbers().Unsaved, []string{"+14155552671"})
	checkInvariant(t, s)
}

func TestSessionNoNewCounter(t *testing.T) {
	s := NewSession(10, nil, &fakeWriter{}, nil)
	page := textNode("+1 415 555 2671")

	be.Equal(t, s.Scan(context.Background(), page), 1)
	be.Equal(t, s.noNew, 0)
	be.Equal(t, s.Scan(context.Background(), page), 0)
	be.Equal(t, s.Scan(context.Background(), page), 0)
	be.Equal(t, s.noNew, 2)
	be.Equal(t, s.Scan(context.Background(), textNode("+1 415 555 2672")), 1)
	be.Equal(t, s.noNew, 0)
}

func TestSessionInvariantAcrossPasses(t *testing.T) {
	m := addressbook.NewMatcher()
	m.Add("+447700900001", addressbook.Ref{ID: "k"})
	w := &fakeWriter{fail: map[string]bool{"+15550000003": true}}
	s := NewSession(3, m, w, nil)

	pages := []*Node{
		textNode("+1 555 000 0001", "+44 7700 900001"),
		textNode("+1 555 000 0001", "+1 555 000 0002", "+1 555 000 0003"),
		textNode("+1 555 000 0004", "+1 555 000 0005", "+1 555 000 0006"),
	}
	for _, p := range pages {
		s.Scan(context.Background(), p)
		checkInvariant(t, s)
	}
	be.Equal(t, s.Saved(), 3)
	be.Equal(t, len(s.Numbers().Detected), 7)
}

func TestWalkVisitsTextAndDescriptionsDepthFirst(t *testing.T) {
	root := &Node{
		Text: "root",
		Children: []*Node{
			{Text: "a", Description: "a-desc", Children: []*Node{{Text: "a1"}, nil, {Description: "a2-desc"}}},
			{Text: "b"},
		},
	}
	var got []string
	walk(root, func(text string) { got = append(got, text) })
	be.Equal(t, got, []string{"root", "a", "a-desc", "a1", "a2-desc", "b"})
}

func TestWalkDeepTree(t *testing.T) {
	root := &Node{}
	n := root
	for i := 0; i < 100000; i++ {
		child := &Node{}
		n.Children = []*Node{child}
		n = child
	}
	n.Text = "+1 415 555 2671"

	var got []string
	walk(root, func(text string) { got = append(got, text) })
	be.Equal(t, got, []string{"+1 415 555 2671"})
}

func TestConfigValidate(t *testing.T) {
	be.Err(t, DefaultConfig().Validate(), nil)

	cfg := DefaultConfig()
	cfg.MinScrolls = cfg.MaxScrolls + 1
	be.Err(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NoNewThreshold = 0
	be.Err(t, cfg.Validate())
}

func TestConfigAccepts(t *testing.T) {
	cfg := DefaultConfig()
	be.True(t, cfg.accepts(Event{Package: PackageWhatsApp, Kind: EventContentChanged}))
	be.True(t, cfg.accepts(Event{Package: PackageWhatsAppBusiness, Kind: EventScrolled}))
	be.True(t, !cfg.accepts(Event{Package: PackageWhatsApp, Kind: EventWindowChanged}))
	be.True(t, !cfg.accepts(Event{Package: "com.example", Kind: EventContentChanged}))
}

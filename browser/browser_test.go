package browser

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/contactsaver/scanner"
)

func TestBuildTree(t *testing.T) {
	root := buildTree([]flatNode{
		{Text: "", Parent: -1},
		{Text: "Group info", Parent: 0},
		{Text: "+1 415 555 2671", Description: "Member", Parent: 1},
		{Text: "Participants", Parent: 0},
		{Text: "orphan", Parent: 9},
	})

	be.Equal(t, len(root.Children), 2)
	body := root.Children[0]
	be.Equal(t, len(body.Children), 2)
	be.Equal(t, body.Children[0].Children[0].Description, "Member")
	be.Equal(t, body.Children[1].Text, "Participants")
	be.Equal(t, root.Children[1].Text, "orphan")
}

func TestBuildTreeEmpty(t *testing.T) {
	root := buildTree(nil)
	be.Equal(t, len(root.Children), 0)
}

func TestDiffCounters(t *testing.T) {
	be.Equal(t, len(diffCounters(counters{}, counters{})), 0)
	be.Equal(t, diffCounters(counters{Mutations: 1}, counters{Mutations: 4, Scrolls: 1}), []scanner.Event{
		{Package: Package, Kind: scanner.EventContentChanged},
		{Package: Package, Kind: scanner.EventScrolled},
	})
}

func TestGestureFor(t *testing.T) {
	be.Equal(t, gestureFor(scrollState{Top: 0, Max: 900}, scrollState{Top: 600, Max: 900}), scanner.GestureCompleted)
	be.Equal(t, gestureFor(scrollState{Top: 600, Max: 900}, scrollState{Top: 900, Max: 900}), scanner.GestureCompleted)
	be.Equal(t, gestureFor(scrollState{Top: 100, Max: 900}, scrollState{Top: 100, Max: 900}), scanner.GestureCancelled)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	be.Equal(t, o.URL, WhatsAppWebURL)
	be.Equal(t, o.MaxNodes, defaultMaxNodes)
	be.True(t, o.PollInterval > 0)
}

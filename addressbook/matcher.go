package addressbook

import (
	"context"

	"github.com/spachava753/contactsaver/phone"
)

// PhoneLister is the read side of [Store] a [Matcher] is loaded from.
type PhoneLister interface {
	ListPhones(ctx context.Context) ([]PhoneRecord, error)
}

// Matcher is a materialized snapshot of stored numbers. It is not safe for
// concurrent use.
type Matcher struct {
	exact map[string]Ref
	tails map[string]Ref
}

// NewMatcher returns an empty snapshot.
func NewMatcher() *Matcher {
	return &Matcher{
		exact: make(map[string]Ref),
		tails: make(map[string]Ref),
	}
}

// LoadMatcher snapshots every number in store.
func LoadMatcher(ctx context.Context, store PhoneLister) (*Matcher, error) {
	records, err := store.ListPhones(ctx)
	if err != nil {
		return nil, err
	}
	m := NewMatcher()
	for _, rec := range records {
		m.Add(rec.Number, rec.Ref)
	}
	return m, nil
}

// Add records number as owned by ref. The first entry recorded for a number
// keeps it.
func (m *Matcher) Add(number string, ref Ref) {
	normalized := phone.Normalize(number)
	if normalized == "" {
		return
	}
	if _, ok := m.exact[normalized]; !ok {
		m.exact[normalized] = ref
	}
	if tail := phone.Tail(normalized); tail != "" {
		if _, ok := m.tails[tail]; !ok {
			m.tails[tail] = ref
		}
	}
}

// Lookup returns the entry owning number under the exact or trailing-digit rule.
func (m *Matcher) Lookup(number string) (Ref, bool) {
	normalized := phone.Normalize(number)
	if normalized == "" {
		return Ref{}, false
	}
	if ref, ok := m.exact[normalized]; ok {
		return ref, true
	}
	if tail := phone.Tail(normalized); tail != "" {
		if ref, ok := m.tails[tail]; ok {
			return ref, true
		}
	}
	return Ref{}, false
}

// Known reports whether number is already in the snapshot.
func (m *Matcher) Known(number string) bool {
	_, ok := m.Lookup(number)
	return ok
}

// Len returns the number of distinct normalized numbers in the snapshot.
func (m *Matcher) Len() int {
	return len(m.exact)
}

package addressbook

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultPrefix is the display-name prefix of sequenced entries.
	DefaultPrefix = "CLAUD_"
	// PlaceholderName is used when an upserted candidate has no name.
	PlaceholderName = "Unknown Contact"
)

// SequenceName formats a sequenced display name, for example CLAUD_001.
func SequenceName(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

// Candidate is an entry to upsert by phone number.
type Candidate struct {
	Name  string
	Phone string
	Email string
}

// Writer applies the sequenced-create and name-aware upsert policies.
type Writer struct {
	store       Store
	locks       *Locks
	prefix      string
	placeholder string
	logger      *zap.Logger
}

// WriterOption customizes a [Writer].
type WriterOption func(*Writer)

// WithPrefix sets the sequenced display-name prefix.
func WithPrefix(prefix string) WriterOption {
	return func(w *Writer) {
		if prefix != "" {
			w.prefix = prefix
		}
	}
}

// WithPlaceholder sets the name used for candidates without one.
func WithPlaceholder(name string) WriterOption {
	return func(w *Writer) {
		if strings.TrimSpace(name) != "" {
			w.placeholder = strings.TrimSpace(name)
		}
	}
}

// WithLogger sets the writer logger.
func WithLogger(logger *zap.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter returns a Writer over store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		locks:       &Locks{},
		prefix:      DefaultPrefix,
		placeholder: PlaceholderName,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Prefix returns the sequenced display-name prefix.
func (w *Writer) Prefix() string {
	return w.prefix
}

// CreateSequenced creates a new entry named prefix+seq holding number.
//
// The store is re-checked under the number's lock first; when another writer
// stored the number since the caller's snapshot was taken, the existing ref is
// returned with created == false and nothing is written.
func (w *Writer) CreateSequenced(ctx context.Context, seq int, number string) (ref Ref, created bool, err error) {
	unlock := w.locks.Lock(number)
	defer unlock()

	existing, found, err := w.store.FindByPhone(ctx, number)
	if err != nil {
		return Ref{}, false, err
	}
	if found {
		return existing, false, nil
	}

	name := SequenceName(w.prefix, seq)
	ref, err = w.store.Create(ctx, ContactDraft{
		DisplayName: name,
		Phones:      []LabeledValue{{Label: "mobile", Value: number}},
	})
	if err != nil {
		w.logger.Warn("sequenced create failed", zap.String("name", name), zap.String("phone", number), zap.Error(err))
		return Ref{}, false, err
	}
	w.logger.Debug("saved contact", zap.String("name", name), zap.String("phone", number), zap.String("id", ref.ID))
	return ref, true, nil
}

// Upsert updates the display name of the entry matching c.Phone or creates a
// new entry with name, phone, and optional email. matcher is consulted first
// and updated with created entries; the store is re-checked under the
// number's lock before creating.
func (w *Writer) Upsert(ctx context.Context, matcher *Matcher, c Candidate) (WriteResult, error) {
	if strings.TrimSpace(c.Phone) == "" {
		err := &Error{Code: ErrorCodeValidation, Message: "phone is required"}
		return WriteResult{Err: err}, err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = w.placeholder
	}

	unlock := w.locks.Lock(c.Phone)
	defer unlock()

	ref, found := Ref{}, false
	if matcher != nil {
		ref, found = matcher.Lookup(c.Phone)
	}
	if !found {
		var err error
		ref, found, err = w.store.FindByPhone(ctx, c.Phone)
		if err != nil {
			return WriteResult{Err: err}, err
		}
	}

	if found {
		if err := w.store.UpdateName(ctx, ref, name); err != nil {
			w.logger.Warn("update name failed", zap.String("id", ref.ID), zap.Error(err))
			return WriteResult{Ref: ref, Err: err}, err
		}
		if matcher != nil {
			matcher.Add(c.Phone, ref)
		}
		return WriteResult{Ref: ref, Succeeded: true, Updated: true}, nil
	}

	draft := ContactDraft{
		DisplayName: name,
		Phones:      []LabeledValue{{Label: "mobile", Value: c.Phone}},
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		draft.Emails = []LabeledValue{{Label: "home", Value: email}}
	}
	ref, err := w.store.Create(ctx, draft)
	if err != nil {
		w.logger.Warn("create failed", zap.String("phone", c.Phone), zap.Error(err))
		return WriteResult{Err: err}, err
	}
	if matcher != nil {
		matcher.Add(c.Phone, ref)
	}
	return WriteResult{Ref: ref, Succeeded: true, Created: true}, nil
}

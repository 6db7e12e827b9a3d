package addressbook

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nalgeon/be"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "contacts.db"))
	be.Err(t, err, nil)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ref, err := store.Create(ctx, ContactDraft{
		DisplayName: "Alice",
		Phones:      []LabeledValue{{Label: "mobile", Value: "+1 (123) 456-7890"}},
		Emails:      []LabeledValue{{Label: "home", Value: "alice@example.test"}},
	})
	be.Err(t, err, nil)
	be.True(t, ref.ID != "")

	item, err := store.Get(ctx, ref)
	be.Err(t, err, nil)
	be.Equal(t, item.DisplayName, "Alice")
	be.Equal(t, item.Phones, []LabeledValue{{Label: "mobile", Value: "+1 (123) 456-7890"}})
	be.Equal(t, item.Emails, []LabeledValue{{Label: "home", Value: "alice@example.test"}})

	n, err := store.Count(ctx)
	be.Err(t, err, nil)
	be.Equal(t, n, 1)
}

func TestSQLiteCreateValidation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Create(ctx, ContactDraft{Phones: []LabeledValue{{Value: "4155552671"}}})
	be.True(t, IsCode(err, ErrorCodeValidation))

	_, err = store.Create(ctx, ContactDraft{DisplayName: "No Phone"})
	be.True(t, IsCode(err, ErrorCodeValidation))

	n, err := store.Count(ctx)
	be.Err(t, err, nil)
	be.Equal(t, n, 0)
}

func TestSQLiteCreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := store.Create(cancelled, ContactDraft{
		DisplayName: "Ghost",
		Phones:      []LabeledValue{{Value: "4155552671"}},
	})
	be.Err(t, err)

	n, err := store.Count(ctx)
	be.Err(t, err, nil)
	be.Equal(t, n, 0)
	phones, err := store.ListPhones(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(phones), 0)
}

func TestSQLiteFindByPhone(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ref, err := store.Create(ctx, ContactDraft{
		DisplayName: "Bob",
		Phones:      []LabeledValue{{Value: "415-555-2671"}},
	})
	be.Err(t, err, nil)

	got, found, err := store.FindByPhone(ctx, "+14155552671")
	be.Err(t, err, nil)
	be.True(t, found)
	be.Equal(t, got, ref)

	_, found, err = store.FindByPhone(ctx, "5552671")
	be.Err(t, err, nil)
	be.True(t, !found)
}

func TestSQLiteUpdateName(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ref, err := store.Create(ctx, ContactDraft{DisplayName: "Old", Phones: []LabeledValue{{Value: "4155552671"}}})
	be.Err(t, err, nil)
	be.Err(t, store.UpdateName(ctx, ref, "New"), nil)

	item, err := store.Get(ctx, ref)
	be.Err(t, err, nil)
	be.Equal(t, item.DisplayName, "New")

	err = store.UpdateName(ctx, Ref{ID: "missing"}, "x")
	be.True(t, IsCode(err, ErrorCodeNotFound))
}

func TestMatcher(t *testing.T) {
	m := NewMatcher()
	m.Add("1234567890", Ref{ID: "a"})
	m.Add("555-2671", Ref{ID: "b"})

	ref, ok := m.Lookup("+11234567890")
	be.True(t, ok)
	be.Equal(t, ref.ID, "a")

	be.True(t, m.Known("5552671"))
	be.True(t, !m.Known("+15552671"))
	be.True(t, !m.Known("+19998887777"))
	be.Equal(t, m.Len(), 2)
}

func TestLoadMatcher(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Create(ctx, ContactDraft{DisplayName: "A", Phones: []LabeledValue{{Value: "+44 20 7946 0958"}}})
	be.Err(t, err, nil)

	m, err := LoadMatcher(ctx, store)
	be.Err(t, err, nil)
	be.True(t, m.Known("2079460958"))
}

func TestWriterCreateSequenced(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	w := NewWriter(store)

	ref, created, err := w.CreateSequenced(ctx, 7, "+14155552671")
	be.Err(t, err, nil)
	be.True(t, created)

	item, err := store.Get(ctx, ref)
	be.Err(t, err, nil)
	be.Equal(t, item.DisplayName, "CLAUD_007")

	again, created, err := w.CreateSequenced(ctx, 8, "4155552671")
	be.Err(t, err, nil)
	be.True(t, !created)
	be.Equal(t, again, ref)
}

func TestSequenceName(t *testing.T) {
	be.Equal(t, SequenceName("CLAUD_", 1), "CLAUD_001")
	be.Equal(t, SequenceName("X-", 1234), "X-1234")
}

func TestWriterUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	existing, err := store.Create(ctx, ContactDraft{DisplayName: "Old", Phones: []LabeledValue{{Value: "1234567890"}}})
	be.Err(t, err, nil)

	m, err := LoadMatcher(ctx, store)
	be.Err(t, err, nil)
	w := NewWriter(store)

	res, err := w.Upsert(ctx, m, Candidate{Name: "Alice", Phone: "+11234567890"})
	be.Err(t, err, nil)
	be.True(t, res.Updated)
	be.Equal(t, res.Ref, existing)
	item, err := store.Get(ctx, existing)
	be.Err(t, err, nil)
	be.Equal(t, item.DisplayName, "Alice")
	be.Equal(t, item.Phones[0].Value, "1234567890")

	res, err = w.Upsert(ctx, m, Candidate{Phone: "+19998887777", Email: "x@example.test"})
	be.Err(t, err, nil)
	be.True(t, res.Created)
	item, err = store.Get(ctx, res.Ref)
	be.Err(t, err, nil)
	be.Equal(t, item.DisplayName, PlaceholderName)
	be.Equal(t, item.Emails[0].Value, "x@example.test")
	be.True(t, m.Known("9998887777"))

	n, err := store.Count(ctx)
	be.Err(t, err, nil)
	be.Equal(t, n, 2)
}

type failingStore struct {
	Store
	err error
}

func (s failingStore) FindByPhone(context.Context, string) (Ref, bool, error) {
	return Ref{}, false, nil
}

func (s failingStore) Create(context.Context, ContactDraft) (Ref, error) {
	return Ref{}, s.err
}

func TestWriterReportsStoreFailure(t *testing.T) {
	boom := storeError("insert contact", errors.New("disk full"))
	w := NewWriter(failingStore{err: boom})

	_, created, err := w.CreateSequenced(context.Background(), 1, "4155552671")
	be.Err(t, err, boom)
	be.True(t, !created)

	res, err := w.Upsert(context.Background(), NewMatcher(), Candidate{Name: "A", Phone: "4155552671"})
	be.True(t, IsCode(err, ErrorCodeStore))
	be.True(t, !res.Succeeded)
}

func TestWriterConcurrentUpsertCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	w := NewWriter(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Upsert(ctx, NewMatcher(), Candidate{Name: "Dup", Phone: "+14155552671"})
		}()
	}
	wg.Wait()

	n, err := store.Count(ctx)
	be.Err(t, err, nil)
	be.Equal(t, n, 1)
}

func TestLocksReleaseEntries(t *testing.T) {
	var l Locks
	unlock := l.Lock("+14155552671")
	be.Equal(t, l.size(), 1)
	unlock()
	unlock()
	be.Equal(t, l.size(), 0)
}

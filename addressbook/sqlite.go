package addressbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spachava753/contactsaver/phone"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	modified_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS phones (
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	label      TEXT NOT NULL DEFAULT '',
	number     TEXT NOT NULL,
	normalized TEXT NOT NULL,
	tail       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_phones_normalized ON phones(normalized);
CREATE INDEX IF NOT EXISTS idx_phones_tail ON phones(tail);
CREATE INDEX IF NOT EXISTS idx_phones_contact ON phones(contact_id);

CREATE TABLE IF NOT EXISTS emails (
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	label      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emails_contact ON emails(contact_id);
`

// SQLiteStore is a [Store] backed by a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and if needed creates) the address book database at path.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &Error{Code: ErrorCodeValidation, Message: "database path is required"}
	}

	dsn := "file::memory:?cache=private&_foreign_keys=on"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storeError("create database directory", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", strings.ReplaceAll(path, " ", "%20"))
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storeError("open database", err)
	}
	// One connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storeError("connect", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeError("initialize schema", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListPhones returns every stored phone number.
func (s *SQLiteStore) ListPhones(ctx context.Context) ([]PhoneRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT contact_id, number FROM phones ORDER BY rowid`)
	if err != nil {
		return nil, storeError("list phones", err)
	}
	defer rows.Close()

	records := make([]PhoneRecord, 0, 64)
	for rows.Next() {
		var rec PhoneRecord
		if err := rows.Scan(&rec.Ref.ID, &rec.Number); err != nil {
			return nil, storeError("scan phone", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate phones", err)
	}
	return records, nil
}

// FindByPhone returns the first entry whose number matches number exactly
// (normalized) or by trailing digits.
func (s *SQLiteStore) FindByPhone(ctx context.Context, number string) (Ref, bool, error) {
	normalized := phone.Normalize(number)
	if normalized == "" {
		return Ref{}, false, nil
	}
	tail := phone.Tail(normalized)

	var id string
	err := s.db.QueryRowContext(ctx, `
SELECT contact_id FROM phones
WHERE normalized = ? OR (tail <> '' AND tail = ?)
ORDER BY rowid
LIMIT 1`, normalized, tail).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, storeError("find by phone", err)
	}
	return Ref{ID: id}, true, nil
}

// Create inserts the entry, its name, phones, and emails in one transaction.
func (s *SQLiteStore) Create(ctx context.Context, draft ContactDraft) (ref Ref, err error) {
	name := strings.TrimSpace(draft.DisplayName)
	if name == "" {
		return Ref{}, &Error{Code: ErrorCodeValidation, Message: "display name is required"}
	}
	if len(draft.Phones) == 0 {
		return Ref{}, &Error{Code: ErrorCodeValidation, Message: "at least one phone is required"}
	}
	for _, p := range draft.Phones {
		if phone.Normalize(p.Value) == "" {
			return Ref{}, &Error{Code: ErrorCodeValidation, Message: fmt.Sprintf("invalid phone %q", p.Value)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ref{}, storeError("begin create", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id := uuid.NewString()
	now := s.now().UTC().UnixMilli()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO contacts (id, display_name, created_at, modified_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now); err != nil {
		return Ref{}, storeError("insert contact", err)
	}

	for _, p := range draft.Phones {
		normalized := phone.Normalize(p.Value)
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO phones (contact_id, label, number, normalized, tail) VALUES (?, ?, ?, ?, ?)`,
			id, p.Label, strings.TrimSpace(p.Value), normalized, phone.Tail(normalized)); err != nil {
			return Ref{}, storeError("insert phone", err)
		}
	}

	for _, e := range draft.Emails {
		address := strings.TrimSpace(e.Value)
		if address == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO emails (contact_id, label, address) VALUES (?, ?, ?)`,
			id, e.Label, address); err != nil {
			return Ref{}, storeError("insert email", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Ref{}, storeError("commit create", err)
	}
	return Ref{ID: id}, nil
}

// UpdateName replaces the display name of ref.
func (s *SQLiteStore) UpdateName(ctx context.Context, ref Ref, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &Error{Code: ErrorCodeValidation, Message: "display name is required"}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET display_name = ?, modified_at = ? WHERE id = ?`,
		name, s.now().UTC().UnixMilli(), ref.ID)
	if err != nil {
		return storeError("update name", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("update name", err)
	}
	if n == 0 {
		return &Error{Code: ErrorCodeNotFound, Message: fmt.Sprintf("entry %q", ref.ID)}
	}
	return nil
}

// Get hydrates ref into an Item.
func (s *SQLiteStore) Get(ctx context.Context, ref Ref) (Item, error) {
	item := Item{Ref: ref}
	var created, modified int64
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, created_at, modified_at FROM contacts WHERE id = ?`, ref.ID).
		Scan(&item.DisplayName, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, &Error{Code: ErrorCodeNotFound, Message: fmt.Sprintf("entry %q", ref.ID)}
	}
	if err != nil {
		return Item{}, storeError("get contact", err)
	}
	item.CreatedAt = time.UnixMilli(created).UTC()
	item.ModifiedAt = time.UnixMilli(modified).UTC()

	if item.Phones, err = s.labeledValues(ctx, `SELECT label, number FROM phones WHERE contact_id = ? ORDER BY rowid`, ref.ID); err != nil {
		return Item{}, err
	}
	if item.Emails, err = s.labeledValues(ctx, `SELECT label, address FROM emails WHERE contact_id = ? ORDER BY rowid`, ref.ID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// List returns up to limit entries, most recently modified first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM contacts ORDER BY modified_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, storeError("list contacts", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, storeError("scan contact", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate contacts", err)
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.Get(ctx, Ref{ID: id})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, storeError("count contacts", err)
	}
	return n, nil
}

func (s *SQLiteStore) labeledValues(ctx context.Context, query string, id string) ([]LabeledValue, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, storeError("query values", err)
	}
	defer rows.Close()

	var values []LabeledValue
	for rows.Next() {
		var v LabeledValue
		if err := rows.Scan(&v.Label, &v.Value); err != nil {
			return nil, storeError("scan value", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate values", err)
	}
	return values, nil
}

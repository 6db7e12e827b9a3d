package addressbook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies address book errors.
type ErrorCode string

const (
	// ErrorCodeNotFound indicates a referenced entry does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"
	// ErrorCodeValidation indicates invalid input.
	ErrorCodeValidation ErrorCode = "validation"
	// ErrorCodeStore indicates a storage/backend failure.
	ErrorCodeStore ErrorCode = "store"
)

// Error is a typed package error for store operations.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "addressbook: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("addressbook: %s", e.Code)
	}
	return fmt.Sprintf("addressbook: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsCode reports whether err is an [*Error] with the given code.
func IsCode(err error, code ErrorCode) bool {
	var target *Error
	return errors.As(err, &target) && target.Code == code
}

func storeError(op string, err error) error {
	return &Error{Code: ErrorCodeStore, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

// Ref is a stable entry reference.
type Ref struct {
	ID string
}

// LabeledValue is a simple labeled string value (email/phone).
type LabeledValue struct {
	Label string
	Value string
}

// PhoneRecord is one stored phone number and the entry that owns it.
type PhoneRecord struct {
	Ref    Ref
	Number string
}

// Item is the hydrated entry model.
type Item struct {
	Ref
	DisplayName string
	Phones      []LabeledValue
	Emails      []LabeledValue
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// ContactDraft is the create model for [Store.Create].
type ContactDraft struct {
	DisplayName string
	Phones      []LabeledValue
	Emails      []LabeledValue
}

// WriteResult reports the status of one write.
type WriteResult struct {
	Ref       Ref
	Succeeded bool
	Created   bool
	Updated   bool
	Err       error
}

// Store is the local address book collaborator.
type Store interface {
	// ListPhones returns every stored phone number, raw as stored.
	ListPhones(ctx context.Context) ([]PhoneRecord, error)
	// FindByPhone returns the first entry with a number equal to number under
	// the exact or trailing-digit rule.
	FindByPhone(ctx context.Context, number string) (Ref, bool, error)
	// Create atomically inserts an entry with its name, phones, and emails.
	Create(ctx context.Context, draft ContactDraft) (Ref, error)
	// UpdateName replaces the display name of an existing entry.
	UpdateName(ctx context.Context, ref Ref, name string) error
	// Get hydrates one entry.
	Get(ctx context.Context, ref Ref) (Item, error)
}

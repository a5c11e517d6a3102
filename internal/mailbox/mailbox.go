// Package mailbox keeps per-owner ordered message lists and guards every
// mutating operation with an ownership check against the acting identity.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/courier/internal/ledger"
)

// ErrUnauthorized is returned when the acting identity tries to mutate a
// mailbox it does not own.
var ErrUnauthorized = errors.New("unauthorized")

// Message is an immutable (sender, payload) pair.
type Message struct {
	Sender  ledger.AccountID `json:"sender"`
	Payload string           `json:"payload"`
}

// Store owns mailbox contents. Implementations preserve insertion order per
// owner and never touch one owner's entries when operating on another's.
type Store interface {
	// Append records msg at the end of owner's mailbox. Duplicate content is
	// appended again, never rejected.
	Append(ctx context.Context, owner ledger.AccountID, msg Message) error
	// List returns owner's messages in insertion order. An owner with no
	// messages yields an empty slice and no error.
	List(ctx context.Context, owner ledger.AccountID) ([]Message, error)
	// Clear removes every message of owner.
	Clear(ctx context.Context, owner ledger.AccountID) error
}

// Mailbox is the guarded surface services use.
type Mailbox struct {
	store Store
}

// New wraps store.
func New(store Store) *Mailbox {
	return &Mailbox{store: store}
}

// Record appends payload to owner's mailbox with the acting identity as
// sender. The sender is never taken from the caller's arguments.
func (m *Mailbox) Record(ctx context.Context, acting, owner ledger.AccountID, payload string) error {
	if acting == "" {
		return fmt.Errorf("%w: no acting identity", ErrUnauthorized)
	}
	return m.store.Append(ctx, owner, Message{Sender: acting, Payload: payload})
}

// ReadAll returns owner's messages in insertion order.
func (m *Mailbox) ReadAll(ctx context.Context, owner ledger.AccountID) ([]Message, error) {
	msgs, err := m.store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// ClearAll removes owner's messages. Only the owner may clear its mailbox;
// any other acting identity gets ErrUnauthorized and nothing is removed.
func (m *Mailbox) ClearAll(ctx context.Context, acting, owner ledger.AccountID) error {
	if acting != owner {
		return fmt.Errorf("%w: %s may not clear the mailbox of %s", ErrUnauthorized, acting, owner)
	}
	return m.store.Clear(ctx, owner)
}

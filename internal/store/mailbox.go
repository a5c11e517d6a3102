package store

import (
	"context"
	"fmt"

	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/mailbox"
)

// MailboxStore keeps mailboxes in the journal database. Each service
// artifact gets its own namespace so two services never share a box.
type MailboxStore struct {
	s         *Store
	namespace string
}

var _ mailbox.Store = (*MailboxStore)(nil)

// Mailboxes returns the mailbox store for namespace.
func (s *Store) Mailboxes(namespace string) *MailboxStore {
	return &MailboxStore{s: s, namespace: namespace}
}

func (m *MailboxStore) Append(ctx context.Context, owner ledger.AccountID, msg mailbox.Message) error {
	_, err := m.s.db.ExecContext(ctx, `
		INSERT INTO mailbox_messages (namespace, owner, sender, payload)
		VALUES (?, ?, ?, ?)
	`, m.namespace, string(owner), string(msg.Sender), msg.Payload)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (m *MailboxStore) List(ctx context.Context, owner ledger.AccountID) ([]mailbox.Message, error) {
	rows, err := m.s.db.QueryContext(ctx, `
		SELECT sender, payload FROM mailbox_messages
		WHERE namespace = ? AND owner = ?
		ORDER BY id ASC
	`, m.namespace, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []mailbox.Message{}
	for rows.Next() {
		var sender string
		var msg mailbox.Message
		if err := rows.Scan(&sender, &msg.Payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Sender = ledger.AccountID(sender)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func (m *MailboxStore) Clear(ctx context.Context, owner ledger.AccountID) error {
	_, err := m.s.db.ExecContext(ctx, `
		DELETE FROM mailbox_messages WHERE namespace = ? AND owner = ?
	`, m.namespace, string(owner))
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/mailbox"
)

func TestMailboxStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	box := s.Mailboxes("messenger")

	empty, err := box.List(ctx, "bob")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, box.Append(ctx, "bob", mailbox.Message{Sender: "alice", Payload: "Hey!"}))
	require.NoError(t, box.Append(ctx, "bob", mailbox.Message{Sender: "alice", Payload: "Hey!"}))
	require.NoError(t, box.Append(ctx, "bob", mailbox.Message{Sender: "carol", Payload: "yo"}))
	require.NoError(t, box.Append(ctx, "carol", mailbox.Message{Sender: "bob", Payload: "other box"}))

	msgs, err := box.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []mailbox.Message{
		{Sender: "alice", Payload: "Hey!"},
		{Sender: "alice", Payload: "Hey!"},
		{Sender: "carol", Payload: "yo"},
	}, msgs)

	require.NoError(t, box.Clear(ctx, "bob"))
	msgs, err = box.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	carol, err := box.List(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, carol, 1)
}

func TestMailboxStore_Namespaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Mailboxes("a").Append(ctx, "bob", mailbox.Message{Sender: "alice", Payload: "x"}))

	other, err := s.Mailboxes("b").List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMailboxStore_WithMailbox(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mb := mailbox.New(s.Mailboxes("messenger"))

	require.NoError(t, mb.Record(ctx, "alice", "bob", "persisted"))
	assert.ErrorIs(t, mb.ClearAll(ctx, "alice", "bob"), mailbox.ErrUnauthorized)

	msgs, err := mb.ReadAll(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []mailbox.Message{{Sender: "alice", Payload: "persisted"}}, msgs)
}

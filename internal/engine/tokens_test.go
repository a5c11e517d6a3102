package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/value"
)

func TestUUIDv7Tokens(t *testing.T) {
	var gen UUIDv7Tokens
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		token, err := gen.NextToken()
		require.NoError(t, err)

		parsed, err := uuid.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		require.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestFixedTokens(t *testing.T) {
	gen := NewFixedTokens("trace-1", "trace-2")
	assert.Equal(t, 2, gen.Remaining())

	for _, want := range []string{"trace-1", "trace-2"} {
		got, err := gen.NextToken()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := gen.NextToken()
	assert.ErrorIs(t, err, ErrTokensExhausted)
	assert.Zero(t, gen.Remaining())
}

func TestRuntime_SubmitWithoutTokens(t *testing.T) {
	rt := New(NewRegistry(), WithTokens(NewFixedTokens()))
	require.NoError(t, rt.CreateAccount("alice", 100, ""))

	_, err := rt.Submit(context.Background(), Transaction{
		Signer: "alice", Receiver: "alice", Operation: "echo", Args: value.Object{}, Deposit: 10, Budget: 50,
	})
	require.ErrorIs(t, err, ErrTokensExhausted)

	acct, _ := rt.Account("alice")
	assert.Equal(t, uint64(100), uint64(acct.Balance), "rejected submit debits nothing")
	assert.Zero(t, rt.QueueLen())
}

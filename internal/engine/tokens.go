package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrTokensExhausted is returned by FixedTokens once every token is used.
var ErrTokensExhausted = errors.New("trace tokens exhausted")

// TraceTokens issues one token per submitted transaction. Every leg the
// transaction causes, directly or through continuations, carries it.
type TraceTokens interface {
	NextToken() (string, error)
}

// UUIDv7Tokens issues time-sortable UUIDv7 tokens.
type UUIDv7Tokens struct{}

// NextToken implements TraceTokens.
func (UUIDv7Tokens) NextToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("trace token: %w", err)
	}
	return id.String(), nil
}

// FixedTokens hands out a fixed list of tokens in order, for deterministic
// tests. Running out is an error, not a wraparound.
type FixedTokens struct {
	mu   sync.Mutex
	left []string
}

// NewFixedTokens returns tokens in the given order.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{left: slices.Clone(tokens)}
}

// NextToken implements TraceTokens.
func (f *FixedTokens) NextToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.left) == 0 {
		return "", ErrTokensExhausted
	}
	token := f.left[0]
	f.left = f.left[1:]
	return token, nil
}

// Remaining is the number of unused tokens.
func (f *FixedTokens) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.left)
}

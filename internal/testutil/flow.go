package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens issues "<prefix>-1", "<prefix>-2", ... and never runs out.
//
// The same scenario run with the same prefix yields the same tokens, which
// keeps golden traces byte-identical. Implements engine.TraceTokens.
//
// Thread-safety: safe for concurrent use.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokens creates a generator. An empty prefix becomes "trace".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "trace"
	}
	return &SequentialTokens{prefix: prefix}
}

// NextToken returns the next token. It never fails.
func (g *SequentialTokens) NextToken() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n), nil
}

// Reset starts the sequence over, for reusing a generator across runs.
func (g *SequentialTokens) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

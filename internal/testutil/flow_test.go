package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/engine"
)

var _ engine.TraceTokens = (*SequentialTokens)(nil)

func next(t *testing.T, gen *SequentialTokens) string {
	t.Helper()
	token, err := gen.NextToken()
	require.NoError(t, err)
	return token
}

func TestSequentialTokens(t *testing.T) {
	gen := NewSequentialTokens("relay")
	assert.Equal(t, "relay-1", next(t, gen))
	assert.Equal(t, "relay-2", next(t, gen))

	gen.Reset()
	assert.Equal(t, "relay-1", next(t, gen))
}

func TestSequentialTokens_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "trace-1", next(t, NewSequentialTokens("")))
}

func TestSequentialTokens_ThreadSafe(t *testing.T) {
	gen := NewSequentialTokens("t")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, _ := gen.NextToken()
			_, dup := seen.LoadOrStore(token, true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, "t-51", next(t, gen))
}

func TestTempJournal(t *testing.T) {
	st := TempJournal(t)
	seq, err := st.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
}

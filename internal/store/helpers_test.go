package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/value"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testLeg(id, trace string, seq int64) LegRecord {
	return LegRecord{
		ID:        chain.Handle(id),
		Trace:     trace,
		Seq:       seq,
		Origin:    "alice",
		Signer:    "alice",
		Receiver:  "bob",
		Operation: "record_message",
		Args:      value.Object{"payload": value.String("hi")},
		Budget:    100,
		Policy:    chain.ContinueAlways,
	}
}

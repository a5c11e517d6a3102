package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/courier/internal/store"
)

// TempJournal opens a journal in a per-test directory and closes it when the
// test ends.
func TempJournal(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

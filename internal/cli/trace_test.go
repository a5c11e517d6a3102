package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/value"
)

// journaledRelay runs one relay against an environment with a journal and
// returns the journal path and the trace token.
func journaledRelay(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	env := writeFile(t, dir, "env.yaml", testEnv+"journal: journal.db\n")

	out, err := execute(NewCallCommand(&RootOptions{Format: "json"}), env,
		"--signer", "alice", "--receiver", "alice", "--op", "relay",
		"--args", `{"peer":"bob","payload":"Hey!"}`, "--budget", "300")
	require.NoError(t, err)

	resp := decodeData(t, out, nil)
	require.NotEmpty(t, resp.Trace)
	return filepath.Join(dir, "journal.db"), resp.Trace
}

func TestTrace_MissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "some-trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTrace_NonExistentDatabase(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", "/nonexistent/path/journal.db", "some-trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open journal")
}

func TestTrace_UnknownTrace(t *testing.T) {
	db, _ := journaledRelay(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No legs found for trace: nope")
}

func TestTrace_Text(t *testing.T) {
	db, token := journaledRelay(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text", Verbose: true}), "--db", db, token)
	require.NoError(t, err)

	assert.Contains(t, out, "Trace: "+token)
	assert.Contains(t, out, "Status: complete")
	assert.Contains(t, out, "alice -> bob.record_message  success")
	assert.Contains(t, out, `Args: {"payload":"Hey!","peer":"bob"}`)
	assert.Contains(t, out, "-[read_all_for]->")
	assert.Contains(t, out, "Legs:      3")
	assert.Contains(t, out, "Succeeded: 3")
}

func TestTrace_JSONWithOperationFilter(t *testing.T) {
	db, token := journaledRelay(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", db, token, "--operation", "record_message")
	require.NoError(t, err)

	var data map[string]any
	resp := decodeData(t, out, &data)
	assert.Equal(t, token, resp.Trace)

	timeline := data["timeline"].([]any)
	require.Len(t, timeline, 1)
	assert.Equal(t, "record_message", timeline[0].(map[string]any)["operation"])

	stats := data["stats"].(map[string]any)
	assert.Equal(t, float64(3), stats["legs"])
	assert.Equal(t, true, stats["is_complete"])
	assert.Len(t, data["chains"], 1)
}

func TestTrace_List(t *testing.T) {
	db, token := journaledRelay(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, token+"  alice -> alice  3/3 legs resolved  complete")

	out, err = execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	var items []TraceListItem
	decodeData(t, out, &items)
	require.Len(t, items, 1)
	assert.Equal(t, TraceListItem{Trace: token, Signer: "alice", Receiver: "alice", Legs: 3, Resolved: 3, Complete: true}, items[0])
}

func TestTrace_ListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No traces in journal.")
}

func TestBuildTraceResult_PendingAndAborted(t *testing.T) {
	entries := []store.TraceEntry{
		{
			Leg:     store.LegRecord{ID: "a", Seq: 1, Origin: "alice", Receiver: "alice", Operation: "relay"},
			Outcome: &store.OutcomeRecord{Status: chain.StatusFailed, Reason: "boom"},
		},
		{
			Leg:     store.LegRecord{ID: "b", Seq: 2, Origin: "alice", Receiver: "bob", Operation: "read_all_for", After: "a", Policy: chain.ContinueOnSuccess},
			Outcome: &store.OutcomeRecord{Status: chain.StatusAborted},
		},
		{
			Leg: store.LegRecord{ID: "c", Seq: 3, Origin: "alice", Receiver: "carol", Operation: "record_message"},
		},
	}

	result := buildTraceResult("t", entries, "")
	assert.Equal(t, TraceStats{Legs: 3, Resolved: 2, Failed: 1, Aborted: 1}, result.Stats)
	assert.Equal(t, []ChainEdge{{From: "a", Operation: "read_all_for", To: "b"}}, result.Chains)

	require.Len(t, result.Timeline, 3)
	assert.Equal(t, "boom", result.Timeline[0].Reason)
	assert.Equal(t, "pending", result.Timeline[2].Status)
	assert.Equal(t, value.Null{}, result.Timeline[2].Value)
	assert.Equal(t, value.Object{}, result.Timeline[2].Args)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0123456789ab...", truncateID("0123456789abcdef"))
}

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StopsOnCancel(t *testing.T) {
	env := writeFile(t, t.TempDir(), "env.yaml", testEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetContext(ctx)
	out, err := execute(cmd, env, "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Serving "+env+" on 127.0.0.1:0")
}

func TestServe_BadEnvironment(t *testing.T) {
	_, err := execute(NewServeCommand(&RootOptions{Format: "text"}), "/nonexistent/env.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

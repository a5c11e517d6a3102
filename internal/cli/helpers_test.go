package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testEnv = `accounts:
  - id: alice
    balance: 1000
    artifact: messenger
    keys: [pk-alice]
  - id: bob
    balance: 1000
    artifact: messenger
  - id: carol
    balance: 1000
    artifact: messenger
`

const relayScenario = `name: relay_roundtrip
description: "alice relays a message to bob"
environment: env.yaml
flow:
  - signer: alice
    receiver: alice
    operation: relay
    args: {peer: bob, payload: "Hey!"}
    budget: 300
    expect:
      status: success
      value: [[alice, "Hey!"]]
assertions:
  - type: mailbox
    account: bob
    messages: [[alice, "Hey!"]]
`

const brokenScenario = `name: relay_expect_wrong
description: "expects the wrong inbox"
environment: env.yaml
flow:
  - signer: alice
    receiver: alice
    operation: relay
    args: {peer: bob, payload: "Hey!"}
    budget: 300
    expect:
      status: success
      value: [[carol, "Hey!"]]
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData decodes a JSON CLIResponse and its data into out.
func decodeData(t *testing.T, output string, out any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), "output: %s", output)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return resp.CLIResponse
}

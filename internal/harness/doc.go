// Package harness runs YAML scenarios against a real runtime and checks the
// outcomes and traces they produce.
//
// # Scenario Format
//
//	name: relay_roundtrip
//	description: "alice relays a message to bob"
//	environment: env.yaml          # or inline accounts:
//	accounts:
//	  - {id: alice, balance: 1000, artifact: messenger}
//	setup:
//	  - {signer: alice, receiver: alice, operation: init, budget: 50}
//	flow:
//	  - signer: alice
//	    receiver: alice
//	    operation: relay
//	    args: {peer: bob, payload: "Hey!"}
//	    budget: 300
//	    expect:
//	      status: success
//	      value: [[alice, "Hey!"]]
//	assertions:
//	  - type: trace_contains
//	    operation: record_message
//	    receiver: bob
//	    args: {payload: "Hey!"}
//	  - type: mailbox
//	    account: bob
//	    messages: [[alice, "Hey!"]]
//
// Setup transactions must succeed. Flow transactions are checked against
// their expect clause. Each transaction gets the trace token
// "<name>-<n>", so runs are reproducible and golden traces are stable.
//
// # Assertion Types
//
//   - trace_contains: some leg matches operation, receiver, args (subset) and status
//   - trace_order: operations first appear in the given order
//   - trace_count: operation appears exactly count times
//   - account: account exists (or not) with the given balance, artifact, keys
//   - mailbox: account's messenger mailbox holds exactly these messages
package harness

// Package engine is the host environment that runs service code.
//
// The engine owns accounts, the artifact registry and the leg queue. Every
// leg is a discrete unit of work: a remote invocation of one operation on one
// account. Executing a leg creates a fresh Call, the only view the service
// code gets of the environment. Nothing survives between legs except what is
// recorded on accounts, in mailboxes, or passed as arguments to the next leg.
//
// ARCHITECTURE:
//
// Single-Writer Leg Loop:
// Legs are processed one at a time, in FIFO order, by whichever goroutine
// calls Drain or Run. This gives:
//   - Deterministic execution order for a given sequence of transactions
//   - Reproducible traces for golden comparison
//   - Simple reasoning about causality
//
// Leg Lifecycle:
//  1. A transaction (Submit) or a committed invocation stages a leg
//  2. Root legs are queued at once; continuations wait for their predecessor
//  3. The loop dequeues a leg and executes it in a new Call
//  4. The leg resolves: its outcome is recorded and journaled
//  5. Waiting continuations are queued, or aborted when their policy requires
//     a success the predecessor did not have
//
// Resource Accounting:
// Deposits and budgets are consumed when a leg is staged. A failed invocation
// never took effect: its staged legs and debits are discarded. Deposits on
// legs that later fail or abort are forfeited. Remote failures are never
// retried.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every leg is stamped with a monotonic seq from Clock.Next().
// Wall-clock time is never used for ordering.
//
// Content-Addressed Legs:
// Leg IDs are digests over the trace token, seq, route and arguments, so the
// same transaction replayed against the same tokens yields the same IDs.
package engine

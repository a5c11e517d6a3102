// Package chain builds ordered sequences of remote invocations.
//
// A remote call never returns a value to the invocation that scheduled it.
// Scheduling returns a Handle at once and the scheduling invocation ends;
// the callee runs later as a separate invocation. Continuations are data: a
// continuation registered with Chain names the operation, arguments and
// attached resources of the next leg, and the host runs it as a fresh
// invocation once its predecessor resolves.
//
// Within one chain legs execute strictly in declared order. Nothing is
// ordered across independently scheduled chains.
//
// Resources are consumed when a leg is scheduled. An amount attached to a leg
// is gone from the invoker's ledger whether or not the leg later succeeds,
// and no leg is ever retried.
package chain

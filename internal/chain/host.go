package chain

import (
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// Scheduler is the remote call primitive supplied by the host environment.
//
// Every method returns immediately. A returned error means the request was
// not accepted (unknown handle, quota); a remote failure only ever shows up
// in the resolved Outcome of the handle.
type Scheduler interface {
	// InvokeRemote schedules operation on peer with the attached amounts.
	InvokeRemote(peer ledger.AccountID, operation string, args value.Object,
		balance ledger.Balance, budget ledger.Budget) (Handle, error)

	// ContinueAfter schedules operation on the peer of h once h resolves.
	ContinueAfter(h Handle, operation string, args value.Object,
		balance ledger.Balance, budget ledger.Budget, policy Policy) (Handle, error)

	// CreateInstance schedules the creation of account id: create, fund with
	// balance, install artifact and grant credential, in that order, as a
	// single leg. The leg fails if id already exists.
	CreateInstance(id ledger.AccountID, artifact string,
		balance ledger.Balance, credential string) (Handle, error)
}

// LegAllowance is implemented by hosts that cap the legs of a trace.
// Orchestration that fans out checks it before building anything.
type LegAllowance interface {
	// RemainingLegs is how many more legs this invocation may schedule.
	RemainingLegs() int
}

// Host is everything an invocation can see of its environment.
type Host interface {
	Scheduler
	ledger.Ledger

	// ActingIdentity is the account that triggered this invocation.
	ActingIdentity() ledger.AccountID
	// Self is the account whose code is running.
	Self() ledger.AccountID
	// Signer is the account that signed the originating transaction.
	Signer() ledger.AccountID
}

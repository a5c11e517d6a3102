package chain

import (
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// Orchestrator schedules legs on behalf of one invocation.
//
// Every scheduling method checks the attached amounts against the host
// ledger first and fails with ledger.ErrInsufficientResources before
// anything reaches the scheduler.
type Orchestrator struct {
	host Host
}

// New creates an orchestrator for the current invocation.
func New(host Host) *Orchestrator {
	return &Orchestrator{host: host}
}

// Host returns the invocation host.
func (o *Orchestrator) Host() Host {
	return o.host
}

// Schedule invokes operation on peer and returns the handle of the new leg.
func (o *Orchestrator) Schedule(peer ledger.AccountID, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget) (Handle, error) {
	if err := o.cover(balance, budget); err != nil {
		return "", err
	}
	return o.host.InvokeRemote(peer, operation, args, balance, budget)
}

// ChainOption configures a continuation.
type ChainOption func(*chainConfig)

type chainConfig struct {
	policy Policy
}

// WithPolicy sets the continuation policy. The default is ContinueAlways.
func WithPolicy(p Policy) ChainOption {
	return func(c *chainConfig) {
		c.policy = p
	}
}

// Chain registers operation to run on the same peer as h after h resolves,
// and returns the handle of the new tail.
func (o *Orchestrator) Chain(h Handle, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget, opts ...ChainOption) (Handle, error) {
	cfg := chainConfig{policy: ContinueAlways}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := o.cover(balance, budget); err != nil {
		return "", err
	}
	return o.host.ContinueAfter(h, operation, args, balance, budget, cfg.policy)
}

// Create schedules the creation of a funded, installed, credentialed account.
// The returned handle is chainable; continuations run on the new account.
func (o *Orchestrator) Create(id ledger.AccountID, artifact string,
	balance ledger.Balance, credential string) (Handle, error) {
	if err := o.cover(balance, 0); err != nil {
		return "", err
	}
	return o.host.CreateInstance(id, artifact, balance, credential)
}

// Step is one leg of a Sequence.
type Step struct {
	Operation string
	Args      value.Object
	Balance   ledger.Balance
	Budget    ledger.Budget
	// Policy applies to every step but the first.
	Policy Policy
}

// Sequence schedules steps against peer as one chain: step i+1 is a
// continuation of step i. It returns one handle per step; the last is the
// tail of the chain.
//
// The summed attachments are checked up front so a sequence is scheduled
// entirely or not at all.
func (o *Orchestrator) Sequence(peer ledger.AccountID, steps ...Step) ([]Handle, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	var totalBalance ledger.Balance
	var totalBudget ledger.Budget
	for _, s := range steps {
		totalBalance += s.Balance
		totalBudget += s.Budget
	}
	if err := o.cover(totalBalance, totalBudget); err != nil {
		return nil, err
	}

	handles := make([]Handle, 0, len(steps))
	first := steps[0]
	h, err := o.Schedule(peer, first.Operation, first.Args, first.Balance, first.Budget)
	if err != nil {
		return nil, err
	}
	handles = append(handles, h)

	for _, s := range steps[1:] {
		h, err = o.Chain(h, s.Operation, s.Args, s.Balance, s.Budget, WithPolicy(s.Policy))
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (o *Orchestrator) cover(balance ledger.Balance, budget ledger.Budget) error {
	if avail := o.host.CurrentBalance(); balance > avail {
		return &ledger.ResourceError{
			Resource:  ledger.ResourceBalance,
			Requested: uint64(balance),
			Available: uint64(avail),
		}
	}
	if avail := o.host.CurrentBudget(); budget > avail {
		return &ledger.ResourceError{
			Resource:  ledger.ResourceBudget,
			Requested: uint64(budget),
			Available: uint64(avail),
		}
	}
	return nil
}

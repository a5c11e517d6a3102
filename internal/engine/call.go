package engine

import (
	"fmt"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// Call is one invocation: the environment as seen by service code while a
// single leg executes. It implements chain.Host.
//
// Legs scheduled through a Call are staged, not queued. They take effect
// only if the invocation succeeds; a failed invocation never happened.
//
// A Call is confined to the goroutine executing its leg.
type Call struct {
	rt    *Runtime
	leg   *Leg
	meter *ledger.Meter

	staged     []*Leg
	stagedByID map[chain.Handle]*Leg
}

var (
	_ chain.Host         = (*Call)(nil)
	_ chain.LegAllowance = (*Call)(nil)
)

func newCall(rt *Runtime, leg *Leg, balance ledger.Balance) *Call {
	return &Call{
		rt:         rt,
		leg:        leg,
		meter:      ledger.NewMeter(balance, leg.Budget),
		stagedByID: make(map[chain.Handle]*Leg),
	}
}

// CurrentBalance is the account balance, including the deposit attached to
// this leg, minus deposits attached so far.
func (c *Call) CurrentBalance() ledger.Balance {
	return c.meter.CurrentBalance()
}

// CurrentBudget is the budget attached to this leg minus budget attached to
// scheduled legs so far.
func (c *Call) CurrentBudget() ledger.Budget {
	return c.meter.CurrentBudget()
}

// ActingIdentity is the account whose invocation scheduled this leg.
func (c *Call) ActingIdentity() ledger.AccountID {
	return c.leg.Origin
}

// Self is the account executing this leg.
func (c *Call) Self() ledger.AccountID {
	return c.leg.Receiver
}

// Signer is the account that signed the transaction.
func (c *Call) Signer() ledger.AccountID {
	return c.leg.Signer
}

// Trace returns the trace token of the invocation.
func (c *Call) Trace() string {
	return c.leg.Trace
}

// RemainingLegs is the trace's leg quota minus what is already reserved and
// what this call has staged.
func (c *Call) RemainingLegs() int {
	c.rt.mu.RLock()
	tr := c.rt.traces[c.leg.Trace]
	left := tr.quota.MaxLegs() - tr.quota.Current()
	c.rt.mu.RUnlock()
	return max(left-len(c.staged), 0)
}

// Staged returns the legs scheduled so far, in order.
func (c *Call) Staged() []*Leg {
	return c.staged
}

// InvokeRemote implements chain.Scheduler.
func (c *Call) InvokeRemote(peer ledger.AccountID, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget) (chain.Handle, error) {
	if peer == "" || operation == "" {
		return "", fmt.Errorf("invoke remote: peer and operation are required")
	}
	if err := c.meter.Attach(balance, budget); err != nil {
		return "", err
	}
	return c.stage(&Leg{
		Receiver:  peer,
		Operation: operation,
		Args:      args.Clone(),
		Deposit:   balance,
		Budget:    budget,
	})
}

// ContinueAfter implements chain.Scheduler. The continuation targets the
// receiver of h.
func (c *Call) ContinueAfter(h chain.Handle, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget, policy chain.Policy) (chain.Handle, error) {
	pred, ok := c.lookup(h)
	if !ok {
		return "", fmt.Errorf("%w: %s", chain.ErrUnknownHandle, h)
	}
	if operation == "" {
		return "", fmt.Errorf("continue after %s: operation is required", h)
	}
	if err := c.meter.Attach(balance, budget); err != nil {
		return "", err
	}
	return c.stage(&Leg{
		Receiver:  pred.Receiver,
		Operation: operation,
		Args:      args.Clone(),
		Deposit:   balance,
		Budget:    budget,
		After:     h,
		Policy:    policy,
	})
}

// CreateInstance implements chain.Scheduler.
func (c *Call) CreateInstance(id ledger.AccountID, artifact string,
	balance ledger.Balance, credential string) (chain.Handle, error) {
	if id == "" || artifact == "" {
		return "", fmt.Errorf("create instance: id and artifact are required")
	}
	if err := c.meter.Attach(balance, 0); err != nil {
		return "", err
	}
	return c.stage(&Leg{
		Receiver:  id,
		Operation: OpCreateInstance,
		Args:      value.Object{},
		Deposit:   balance,
		Actions:   creationActions(balance, artifact, credential),
	})
}

func (c *Call) stage(leg *Leg) (chain.Handle, error) {
	leg.Trace = c.leg.Trace
	leg.Signer = c.leg.Signer
	leg.Origin = c.leg.Receiver
	leg.Seq = c.rt.clock.Tick()

	id, err := legID(leg)
	if err != nil {
		return "", err
	}
	leg.ID = id

	c.staged = append(c.staged, leg)
	c.stagedByID[id] = leg
	return id, nil
}

// lookup finds a leg staged by this call or already registered.
func (c *Call) lookup(h chain.Handle) (*Leg, bool) {
	if leg, ok := c.stagedByID[h]; ok {
		return leg, true
	}
	return c.rt.leg(h)
}

// Package chaintest provides a fake chain.Host that records scheduled legs
// and resolves them synchronously and deterministically.
//
// The fake runs no service code. Each leg resolves through a Responder
// (default: success with null) unless a failure rule matches it, so
// orchestration can be tested without the engine.
package chaintest

import (
	"fmt"
	"math"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// OpCreateInstance is the operation name recorded for creation legs.
const OpCreateInstance = "create_instance"

// Leg is one scheduled call as the fake saw it.
type Leg struct {
	Handle    chain.Handle
	Peer      ledger.AccountID
	Operation string
	Args      value.Object
	Balance   ledger.Balance
	Budget    ledger.Budget

	// After is the predecessor for continuations, empty for root legs.
	After  chain.Handle
	Policy chain.Policy

	// Artifact and Credential are set on creation legs.
	Artifact   string
	Credential string
}

// EventKind distinguishes the entries of the execution log.
type EventKind string

const (
	EventRun     EventKind = "run"
	EventResolve EventKind = "resolve"
)

// Event is one entry of the execution log.
type Event struct {
	Kind   EventKind
	Handle chain.Handle
	Status chain.Status
}

// Responder produces the result of a non-creation leg.
type Responder func(leg *Leg) (value.Value, error)

type failureRule struct {
	match  func(*Leg) bool
	reason string
}

// Host is a fake chain.Host. Not safe for concurrent use.
type Host struct {
	self   ledger.AccountID
	acting ledger.AccountID
	signer ledger.AccountID
	meter  *ledger.Meter

	legs     []*Leg
	byHandle map[chain.Handle]*Leg
	waiting  map[chain.Handle][]chain.Handle
	outcomes map[chain.Handle]chain.Outcome
	queue    []chain.Handle
	accounts map[ledger.AccountID]bool
	failures []failureRule
	respond  Responder
	events   []Event
	legLimit int
}

var (
	_ chain.Host         = (*Host)(nil)
	_ chain.LegAllowance = (*Host)(nil)
)

// Option configures a Host.
type Option func(*Host)

// WithActing sets the acting identity. Defaults to self.
func WithActing(id ledger.AccountID) Option {
	return func(h *Host) { h.acting = id }
}

// WithSigner sets the signer. Defaults to self.
func WithSigner(id ledger.AccountID) Option {
	return func(h *Host) { h.signer = id }
}

// WithResponder sets the function that resolves non-creation legs.
func WithResponder(r Responder) Option {
	return func(h *Host) { h.respond = r }
}

// WithAccounts marks ids as already existing; creating them fails.
func WithAccounts(ids ...ledger.AccountID) Option {
	return func(h *Host) {
		for _, id := range ids {
			h.accounts[id] = true
		}
	}
}

// WithLegLimit caps the legs the host accepts in total. Zero means no cap.
func WithLegLimit(n int) Option {
	return func(h *Host) { h.legLimit = n }
}

// NewHost creates a fake host running as self with the given resources.
func NewHost(self ledger.AccountID, balance ledger.Balance, budget ledger.Budget, opts ...Option) *Host {
	h := &Host{
		self:     self,
		acting:   self,
		signer:   self,
		meter:    ledger.NewMeter(balance, budget),
		byHandle: make(map[chain.Handle]*Leg),
		waiting:  make(map[chain.Handle][]chain.Handle),
		outcomes: make(map[chain.Handle]chain.Outcome),
		accounts: map[ledger.AccountID]bool{self: true},
		respond: func(*Leg) (value.Value, error) {
			return value.Null{}, nil
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RemainingLegs implements chain.LegAllowance.
func (h *Host) RemainingLegs() int {
	if h.legLimit == 0 {
		return math.MaxInt
	}
	return max(h.legLimit-len(h.legs), 0)
}

// FailWhen injects a remote failure into every leg matching match.
func (h *Host) FailWhen(match func(*Leg) bool, reason string) {
	h.failures = append(h.failures, failureRule{match: match, reason: reason})
}

// FailOn injects a remote failure into every leg of operation on peer.
func (h *Host) FailOn(peer ledger.AccountID, operation string) {
	h.FailWhen(func(l *Leg) bool {
		return l.Peer == peer && l.Operation == operation
	}, fmt.Sprintf("injected failure: %s.%s", peer, operation))
}

// CurrentBalance implements ledger.Ledger.
func (h *Host) CurrentBalance() ledger.Balance {
	return h.meter.CurrentBalance()
}

// CurrentBudget implements ledger.Ledger.
func (h *Host) CurrentBudget() ledger.Budget {
	return h.meter.CurrentBudget()
}

func (h *Host) ActingIdentity() ledger.AccountID {
	return h.acting
}

func (h *Host) Self() ledger.AccountID {
	return h.self
}

func (h *Host) Signer() ledger.AccountID {
	return h.signer
}

// InvokeRemote implements chain.Scheduler.
func (h *Host) InvokeRemote(peer ledger.AccountID, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget) (chain.Handle, error) {
	if err := h.meter.Attach(balance, budget); err != nil {
		return "", err
	}
	leg := h.add(&Leg{
		Peer: peer, Operation: operation, Args: args.Clone(),
		Balance: balance, Budget: budget,
	})
	h.queue = append(h.queue, leg.Handle)
	return leg.Handle, nil
}

// ContinueAfter implements chain.Scheduler.
func (h *Host) ContinueAfter(pred chain.Handle, operation string, args value.Object,
	balance ledger.Balance, budget ledger.Budget, policy chain.Policy) (chain.Handle, error) {
	p, ok := h.byHandle[pred]
	if !ok {
		return "", fmt.Errorf("%w: %s", chain.ErrUnknownHandle, pred)
	}
	if err := h.meter.Attach(balance, budget); err != nil {
		return "", err
	}
	leg := h.add(&Leg{
		Peer: p.Peer, Operation: operation, Args: args.Clone(),
		Balance: balance, Budget: budget,
		After: pred, Policy: policy,
	})
	if out, done := h.outcomes[pred]; done {
		h.release(leg, out)
	} else {
		h.waiting[pred] = append(h.waiting[pred], leg.Handle)
	}
	return leg.Handle, nil
}

// CreateInstance implements chain.Scheduler.
func (h *Host) CreateInstance(id ledger.AccountID, artifact string,
	balance ledger.Balance, credential string) (chain.Handle, error) {
	if err := h.meter.Attach(balance, 0); err != nil {
		return "", err
	}
	leg := h.add(&Leg{
		Peer: id, Operation: OpCreateInstance,
		Balance: balance, Artifact: artifact, Credential: credential,
	})
	h.queue = append(h.queue, leg.Handle)
	return leg.Handle, nil
}

// Run executes queued legs in FIFO order until none remain.
func (h *Host) Run() {
	for len(h.queue) > 0 {
		handle := h.queue[0]
		h.queue = h.queue[1:]
		leg := h.byHandle[handle]

		h.events = append(h.events, Event{Kind: EventRun, Handle: handle})
		h.resolve(handle, h.execute(leg))
	}
}

func (h *Host) execute(leg *Leg) chain.Outcome {
	for _, f := range h.failures {
		if f.match(leg) {
			return chain.Failed(f.reason)
		}
	}
	if leg.Operation == OpCreateInstance {
		if h.accounts[leg.Peer] {
			return chain.Failed(fmt.Sprintf("account %s already exists", leg.Peer))
		}
		h.accounts[leg.Peer] = true
		return chain.Succeeded(value.Null{})
	}
	if !h.accounts[leg.Peer] {
		return chain.Failed(fmt.Sprintf("account %s does not exist", leg.Peer))
	}
	v, err := h.respond(leg)
	if err != nil {
		return chain.Failed(err.Error())
	}
	return chain.Succeeded(v)
}

func (h *Host) resolve(handle chain.Handle, out chain.Outcome) {
	h.outcomes[handle] = out
	h.events = append(h.events, Event{Kind: EventResolve, Handle: handle, Status: out.Status})

	next := h.waiting[handle]
	delete(h.waiting, handle)
	for _, c := range next {
		h.release(h.byHandle[c], out)
	}
}

// release queues a continuation whose predecessor resolved with pred, or
// aborts it when its policy forbids running.
func (h *Host) release(leg *Leg, pred chain.Outcome) {
	if leg.Policy.Allows(pred) {
		h.queue = append(h.queue, leg.Handle)
		return
	}
	h.resolve(leg.Handle, chain.Aborted(leg.After))
}

func (h *Host) add(leg *Leg) *Leg {
	leg.Handle = chain.Handle(fmt.Sprintf("leg-%d", len(h.legs)+1))
	h.legs = append(h.legs, leg)
	h.byHandle[leg.Handle] = leg
	return leg
}

// Legs returns every scheduled leg in scheduling order.
func (h *Host) Legs() []*Leg {
	return h.legs
}

// Leg returns the leg for handle.
func (h *Host) Leg(handle chain.Handle) (*Leg, bool) {
	l, ok := h.byHandle[handle]
	return l, ok
}

// Outcome returns the resolved outcome of handle.
func (h *Host) Outcome(handle chain.Handle) (chain.Outcome, bool) {
	out, ok := h.outcomes[handle]
	return out, ok
}

// Events returns the execution log.
func (h *Host) Events() []Event {
	return h.events
}

// Index returns the position of the first event of kind for handle, or -1.
func (h *Host) Index(kind EventKind, handle chain.Handle) int {
	for i, ev := range h.events {
		if ev.Kind == kind && ev.Handle == handle {
			return i
		}
	}
	return -1
}

// Exists reports whether account id exists in the fake environment.
func (h *Host) Exists(id ledger.AccountID) bool {
	return h.accounts[id]
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/value"
)

// DefaultMaxLegs is the default leg quota per trace.
const DefaultMaxLegs = 1000

// DefaultBaseFee is the budget every invocation burns just by running.
const DefaultBaseFee ledger.Budget = 10

// ErrStopped is returned by Submit once the runtime has been stopped.
var ErrStopped = errors.New("runtime stopped")

// Runtime is the host environment.
//
// Thread-safety model:
//   - Submit, Await, Outcome, Account, Trace: safe from any goroutine
//   - Drain, Run, Execute: process legs; only one may be active at a time,
//     later callers block until the active one returns
//
// INVARIANTS:
//   - Legs execute in FIFO order of becoming ready
//   - A continuation is queued only after its predecessor resolved
//   - Each leg resolves exactly once
type Runtime struct {
	registry *Registry
	clock    *Clock
	tokens   TraceTokens
	journal  Journal
	metrics  Metrics
	baseFee  ledger.Budget
	maxLegs  int

	queue   *legQueue
	process sync.Mutex

	mu       sync.RWMutex
	accounts map[ledger.AccountID]*account
	legs     map[chain.Handle]*Leg
	outcomes map[chain.Handle]chain.Outcome
	resolved map[chain.Handle]int64  // resolution seq
	waiting  map[chain.Handle][]*Leg // continuations by predecessor
	forwards map[chain.Handle][]*Leg // forwarding legs by target
	traces   map[string]*trace
}

type trace struct {
	token   string
	root    chain.Handle
	legs    []chain.Handle
	quota   *LegQuota
	pending int
	done    chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxLegs sets the leg quota per trace. Values below 1 are ignored.
func WithMaxLegs(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxLegs = n
		}
	}
}

// WithBaseFee sets the budget every invocation burns.
func WithBaseFee(fee ledger.Budget) Option {
	return func(rt *Runtime) {
		rt.baseFee = fee
	}
}

// WithJournal records legs and outcomes to j.
func WithJournal(j Journal) Option {
	return func(rt *Runtime) {
		if j != nil {
			rt.journal = j
		}
	}
}

// WithMetrics reports leg activity to m.
func WithMetrics(m Metrics) Option {
	return func(rt *Runtime) {
		if m != nil {
			rt.metrics = m
		}
	}
}

// WithTokens sets the trace token source. Defaults to UUIDv7Tokens.
func WithTokens(gen TraceTokens) Option {
	return func(rt *Runtime) {
		if gen != nil {
			rt.tokens = gen
		}
	}
}

// WithResumeAfter continues the logical clock after seq, the last seq of a
// reopened journal, so new legs sort after recorded ones.
func WithResumeAfter(seq int64) Option {
	return func(rt *Runtime) {
		rt.clock.AdvanceTo(seq)
	}
}

// New creates a runtime running artifacts from reg.
func New(reg *Registry, opts ...Option) *Runtime {
	if reg == nil {
		reg = NewRegistry()
	}
	rt := &Runtime{
		registry: reg,
		clock:    NewClock(),
		tokens:   UUIDv7Tokens{},
		journal:  nopJournal{},
		metrics:  nopMetrics{},
		baseFee:  DefaultBaseFee,
		maxLegs:  DefaultMaxLegs,
		queue:    newLegQueue(),
		accounts: make(map[ledger.AccountID]*account),
		legs:     make(map[chain.Handle]*Leg),
		outcomes: make(map[chain.Handle]chain.Outcome),
		resolved: make(map[chain.Handle]int64),
		waiting:  make(map[chain.Handle][]*Leg),
		forwards: make(map[chain.Handle][]*Leg),
		traces:   make(map[string]*trace),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Registry returns the artifact registry.
func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

// BaseFee returns the per-invocation base fee.
func (rt *Runtime) BaseFee() ledger.Budget {
	return rt.baseFee
}

// CreateAccount adds an account outside of any transaction, as environment
// genesis does. An empty artifact creates an account without code.
func (rt *Runtime) CreateAccount(id ledger.AccountID, balance ledger.Balance, artifact string, keys ...string) error {
	if id == "" {
		return newRuntimeError(ErrCodeInvalidTransaction, "", "account id is required")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, exists := rt.accounts[id]; exists {
		return newRuntimeError(ErrCodeAccountExists, id, "account already exists")
	}
	acct := &account{id: id, balance: balance, keys: append([]string(nil), keys...)}
	if artifact != "" {
		if err := acct.install(rt.registry, artifact); err != nil {
			return err
		}
	}
	rt.accounts[id] = acct

	slog.Debug("account created", "account", id, "balance", balance, "artifact", artifact)
	return nil
}

// Account returns a snapshot of account id.
func (rt *Runtime) Account(id ledger.AccountID) (AccountView, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	acct, ok := rt.accounts[id]
	if !ok {
		return AccountView{}, false
	}
	return acct.view(), true
}

// Accounts returns snapshots of every account, sorted by id.
func (rt *Runtime) Accounts() []AccountView {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]AccountView, 0, len(rt.accounts))
	for _, acct := range rt.accounts {
		out = append(out, acct.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transaction is an externally signed request: the signer invokes operation
// on receiver, attaching deposit from its own balance and budget.
type Transaction struct {
	Signer    ledger.AccountID
	Receiver  ledger.AccountID
	Operation string
	Args      value.Object
	Deposit   ledger.Balance
	Budget    ledger.Budget
}

// Receipt identifies a submitted transaction. Outcome is set by Execute.
type Receipt struct {
	Trace   string
	Root    chain.Handle
	Outcome chain.Outcome
}

// Submit starts a trace for tx and queues its root leg. The deposit is
// debited from the signer at once. Rejections are synchronous; everything
// after acceptance surfaces in leg outcomes.
func (rt *Runtime) Submit(ctx context.Context, tx Transaction) (Receipt, error) {
	if tx.Signer == "" || tx.Receiver == "" || tx.Operation == "" {
		return Receipt{}, newRuntimeError(ErrCodeInvalidTransaction, "",
			"signer, receiver and operation are required")
	}
	if rt.queue.Closed() {
		return Receipt{}, ErrStopped
	}

	rt.mu.Lock()
	signer, ok := rt.accounts[tx.Signer]
	if !ok {
		rt.mu.Unlock()
		return Receipt{}, newRuntimeError(ErrCodeUnknownAccount, tx.Signer, "signer does not exist")
	}
	if tx.Deposit > signer.balance {
		rt.mu.Unlock()
		return Receipt{}, newRuntimeError(ErrCodeInsufficientBalance, tx.Signer,
			"deposit %d exceeds balance %d", tx.Deposit, signer.balance)
	}

	token, err := rt.tokens.NextToken()
	if err != nil {
		rt.mu.Unlock()
		return Receipt{}, fmt.Errorf("submit: %w", err)
	}
	leg := &Leg{
		Trace:     token,
		Seq:       rt.clock.Tick(),
		Origin:    tx.Signer,
		Signer:    tx.Signer,
		Receiver:  tx.Receiver,
		Operation: tx.Operation,
		Args:      tx.Args.Clone(),
		Deposit:   tx.Deposit,
		Budget:    tx.Budget,
	}
	id, err := legID(leg)
	if err != nil {
		rt.mu.Unlock()
		return Receipt{}, err
	}
	leg.ID = id

	signer.balance -= tx.Deposit
	tr := &trace{
		token: token,
		root:  id,
		quota: NewLegQuota(rt.maxLegs),
		done:  make(chan struct{}),
	}
	_ = tr.quota.Reserve(token, 1) // maxLegs >= 1
	rt.traces[token] = tr
	rt.register(leg, tr)
	rt.mu.Unlock()

	slog.Info("transaction submitted",
		"trace", token,
		"leg", id,
		"signer", tx.Signer,
		"peer", tx.Receiver,
		"operation", tx.Operation,
		"deposit", tx.Deposit,
		"budget", tx.Budget,
	)

	rt.schedule(ctx, leg)
	return Receipt{Trace: token, Root: id}, nil
}

// Drain processes legs until none are ready. Deterministic for a given
// sequence of submitted transactions.
func (rt *Runtime) Drain(ctx context.Context) error {
	rt.process.Lock()
	defer rt.process.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		leg, ok := rt.queue.TryDequeue()
		if !ok {
			return nil
		}
		rt.execute(ctx, leg)
	}
}

// Run processes legs as they become ready until ctx is cancelled or Stop is
// called. Must not be combined with Execute.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.process.Lock()
	defer rt.process.Unlock()

	slog.Info("runtime starting")
	for {
		if leg, ok := rt.queue.TryDequeue(); ok {
			rt.execute(ctx, leg)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("runtime stopping: context cancelled")
			rt.queue.Close()
			return ctx.Err()

		case <-rt.queue.Wait():
			// The signal channel is closed with the queue.
			if rt.queue.Closed() && rt.queue.Len() == 0 {
				slog.Info("runtime stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the leg queue. Run returns once the queue is empty.
func (rt *Runtime) Stop() {
	rt.queue.Close()
}

// Execute submits tx and drains the queue, returning the receipt with the
// root leg's final outcome.
func (rt *Runtime) Execute(ctx context.Context, tx Transaction) (Receipt, error) {
	receipt, err := rt.Submit(ctx, tx)
	if err != nil {
		return Receipt{}, err
	}
	if err := rt.Drain(ctx); err != nil {
		return receipt, err
	}
	out, ok := rt.Outcome(receipt.Root)
	if !ok {
		return receipt, fmt.Errorf("trace %s: root leg unresolved after drain", receipt.Trace)
	}
	receipt.Outcome = out
	return receipt, nil
}

// Await blocks until every leg of the trace has resolved and returns the
// root leg's outcome. Use with Run.
func (rt *Runtime) Await(ctx context.Context, token string) (chain.Outcome, error) {
	rt.mu.RLock()
	tr, ok := rt.traces[token]
	rt.mu.RUnlock()
	if !ok {
		return chain.Outcome{}, fmt.Errorf("unknown trace %q", token)
	}

	select {
	case <-ctx.Done():
		return chain.Outcome{}, ctx.Err()
	case <-tr.done:
	}
	out, _ := rt.Outcome(tr.root)
	return out, nil
}

// Outcome returns the resolved outcome of leg h.
func (rt *Runtime) Outcome(h chain.Handle) (chain.Outcome, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out, ok := rt.outcomes[h]
	return out, ok
}

// Trace returns the legs of a trace in seq order with their outcomes.
func (rt *Runtime) Trace(token string) ([]store.TraceEntry, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	tr, ok := rt.traces[token]
	if !ok {
		return nil, false
	}
	entries := make([]store.TraceEntry, 0, len(tr.legs))
	for _, h := range tr.legs {
		leg := rt.legs[h]
		entry := store.TraceEntry{Leg: legRecord(leg)}
		if out, done := rt.outcomes[h]; done {
			rec := outcomeRecord(leg, rt.resolved[h], out)
			entry.Outcome = &rec
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Leg.Seq < entries[j].Leg.Seq
	})
	return entries, true
}

// QueueLen returns the number of legs ready to execute.
func (rt *Runtime) QueueLen() int {
	return rt.queue.Len()
}

func (rt *Runtime) leg(h chain.Handle) (*Leg, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	leg, ok := rt.legs[h]
	return leg, ok
}

// register records a staged leg. Caller holds rt.mu.
func (rt *Runtime) register(leg *Leg, tr *trace) {
	rt.legs[leg.ID] = leg
	tr.legs = append(tr.legs, leg.ID)
	tr.pending++
}

package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/value"
)

// schedule journals a registered leg and queues it, or links it to its
// predecessor when it is a continuation.
func (rt *Runtime) schedule(ctx context.Context, leg *Leg) {
	if err := rt.journal.WriteLeg(ctx, legRecord(leg)); err != nil {
		// Log and continue: the in-memory trace stays authoritative.
		slog.Error("journal leg failed", "trace", leg.Trace, "leg", leg.ID, "error", err)
	}
	rt.metrics.LegScheduled(leg.Operation)

	if !leg.IsContinuation() {
		rt.enqueue(leg)
		return
	}

	rt.mu.Lock()
	pred, done := rt.outcomes[leg.After]
	if !done {
		rt.waiting[leg.After] = append(rt.waiting[leg.After], leg)
	}
	rt.mu.Unlock()

	if done {
		rt.release(ctx, leg, pred)
	}
}

func (rt *Runtime) enqueue(leg *Leg) {
	if !rt.queue.Enqueue(leg) {
		slog.Warn("leg dropped: runtime stopped",
			"trace", leg.Trace,
			"leg", leg.ID,
			"peer", leg.Receiver,
			"operation", leg.Operation,
		)
	}
}

// execute runs one leg to resolution, or to forwarding.
// CRITICAL: called only from the processing goroutine.
func (rt *Runtime) execute(ctx context.Context, leg *Leg) {
	slog.Debug("executing leg",
		"trace", leg.Trace,
		"leg", leg.ID,
		"seq", leg.Seq,
		"peer", leg.Receiver,
		"operation", leg.Operation,
		"origin", leg.Origin,
	)

	var out chain.Outcome
	var target chain.Handle
	if leg.IsCreation() {
		out = rt.runActions(leg)
	} else {
		out, target = rt.invoke(ctx, leg)
	}

	if target != "" {
		rt.forward(ctx, leg, target)
		return
	}
	if out.Status != chain.StatusSuccess && leg.Deposit > 0 {
		rt.metrics.DepositForfeited(leg.Deposit)
	}
	rt.resolve(ctx, leg, out)
}

// invoke runs service code for leg. On success with a forwarding result it
// returns the target handle instead of an outcome.
func (rt *Runtime) invoke(ctx context.Context, leg *Leg) (chain.Outcome, chain.Handle) {
	rt.mu.RLock()
	acct, ok := rt.accounts[leg.Receiver]
	var svc Service
	var balance = leg.Deposit
	if ok {
		svc = acct.service
		balance += acct.balance
	}
	rt.mu.RUnlock()

	if !ok {
		return failed(newRuntimeError(ErrCodeUnknownAccount, leg.Receiver, "account does not exist")), ""
	}
	if svc == nil {
		return failed(newRuntimeError(ErrCodeNoCode, leg.Receiver, "no service installed")), ""
	}
	if leg.Budget < rt.baseFee {
		return failed(newRuntimeError(ErrCodeBudgetExhausted, leg.Receiver,
			"attached budget %d does not cover base fee %d", leg.Budget, rt.baseFee)), ""
	}

	call := newCall(rt, leg, balance)
	res, err := rt.safeInvoke(ctx, svc, call, leg)
	if err != nil {
		slog.Info("invocation failed",
			"trace", leg.Trace,
			"leg", leg.ID,
			"peer", leg.Receiver,
			"operation", leg.Operation,
			"error", err,
		)
		return chain.Failed(err.Error()), ""
	}

	if left := call.CurrentBudget(); left < rt.baseFee {
		return failed(newRuntimeError(ErrCodeBudgetExhausted, leg.Receiver,
			"ran out of its own budget: %d left after scheduling, base fee %d", left, rt.baseFee)), ""
	}
	if res.Forwarding() {
		if _, known := call.lookup(res.Forward); !known {
			return chain.Failed(fmt.Sprintf("%s: %s", chain.ErrUnknownHandle, res.Forward)), ""
		}
	}

	if err := rt.commit(ctx, call); err != nil {
		return failed(err), ""
	}

	if res.Forwarding() {
		return chain.Outcome{}, res.Forward
	}
	return chain.Succeeded(res.Value), ""
}

func (rt *Runtime) safeInvoke(ctx context.Context, svc Service, call *Call, leg *Leg) (res chain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("service panicked",
				"trace", leg.Trace,
				"leg", leg.ID,
				"peer", leg.Receiver,
				"operation", leg.Operation,
				"panic", r,
			)
			err = newRuntimeError(ErrCodeServicePanic, leg.Receiver, "%v", r)
		}
	}()
	return svc.Invoke(ctx, call, leg.Operation, leg.Args)
}

// commit applies a successful invocation: the deposit is credited, attached
// deposits are debited and staged legs are scheduled in staging order.
func (rt *Runtime) commit(ctx context.Context, call *Call) error {
	leg := call.leg

	rt.mu.Lock()
	tr := rt.traces[leg.Trace]
	if err := tr.quota.Reserve(leg.Trace, len(call.staged)); err != nil {
		rt.mu.Unlock()
		slog.Error("leg quota exceeded",
			"trace", leg.Trace,
			"leg", leg.ID,
			"legs", tr.quota.Current(),
			"limit", tr.quota.MaxLegs(),
		)
		return &RuntimeError{
			Code:       ErrCodeQuotaExceeded,
			Message:    err.Error(),
			Account:    leg.Receiver,
			TraceToken: leg.Trace,
		}
	}

	acct := rt.accounts[leg.Receiver]
	attached, _ := call.meter.Attached()
	total := acct.balance + leg.Deposit
	if attached > total {
		rt.mu.Unlock()
		return newRuntimeError(ErrCodeInsufficientBalance, leg.Receiver,
			"attached deposits %d exceed balance %d", attached, total)
	}
	acct.balance = total - attached

	for _, staged := range call.staged {
		rt.register(staged, tr)
	}
	rt.mu.Unlock()

	for _, staged := range call.staged {
		rt.schedule(ctx, staged)
	}
	return nil
}

// runActions applies a creation batch. A failing batch removes the account
// it created.
func (rt *Runtime) runActions(leg *Leg) chain.Outcome {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var created bool
	fail := func(err error) chain.Outcome {
		if created {
			delete(rt.accounts, leg.Receiver)
		}
		slog.Info("creation failed",
			"trace", leg.Trace,
			"leg", leg.ID,
			"peer", leg.Receiver,
			"error", err,
		)
		return failed(err)
	}

	for _, action := range leg.Actions {
		if action.Kind == ActionCreate {
			if _, exists := rt.accounts[leg.Receiver]; exists {
				return fail(newRuntimeError(ErrCodeAccountExists, leg.Receiver, "account already exists"))
			}
			rt.accounts[leg.Receiver] = &account{id: leg.Receiver}
			created = true
			continue
		}

		acct, ok := rt.accounts[leg.Receiver]
		if !ok {
			return fail(newRuntimeError(ErrCodeUnknownAccount, leg.Receiver, "account does not exist"))
		}
		switch action.Kind {
		case ActionFund:
			acct.balance += action.Amount
		case ActionInstall:
			if err := acct.install(rt.registry, action.Artifact); err != nil {
				return fail(err)
			}
		case ActionGrant:
			acct.keys = append(acct.keys, action.Credential)
		default:
			return fail(fmt.Errorf("unknown action %q", action.Kind))
		}
	}

	slog.Info("account provisioned", "trace", leg.Trace, "leg", leg.ID, "peer", leg.Receiver)
	return chain.Succeeded(value.Null{})
}

// forward makes leg adopt the outcome of target once it resolves.
func (rt *Runtime) forward(ctx context.Context, leg *Leg, target chain.Handle) {
	rt.mu.Lock()
	out, done := rt.outcomes[target]
	if !done {
		rt.forwards[target] = append(rt.forwards[target], leg)
	}
	rt.mu.Unlock()

	slog.Debug("leg forwarded", "trace", leg.Trace, "leg", leg.ID, "target", target)
	if done {
		rt.resolve(ctx, leg, out)
	}
}

// release queues a continuation whose predecessor resolved with pred, or
// aborts it when its policy requires a success.
func (rt *Runtime) release(ctx context.Context, leg *Leg, pred chain.Outcome) {
	if leg.Policy.Allows(pred) {
		rt.enqueue(leg)
		return
	}

	slog.Info("continuation aborted",
		"trace", leg.Trace,
		"leg", leg.ID,
		"after", leg.After,
		"peer", leg.Receiver,
		"operation", leg.Operation,
	)
	if leg.Deposit > 0 {
		rt.metrics.DepositForfeited(leg.Deposit)
	}
	rt.resolve(ctx, leg, chain.Aborted(leg.After))
}

// resolve records the outcome of leg and wakes everything waiting on it.
func (rt *Runtime) resolve(ctx context.Context, leg *Leg, out chain.Outcome) {
	if out.Value == nil {
		out.Value = value.Null{}
	}
	seq := rt.clock.Tick()

	rt.mu.Lock()
	if _, done := rt.outcomes[leg.ID]; done {
		rt.mu.Unlock()
		slog.Warn("leg resolved twice", "trace", leg.Trace, "leg", leg.ID)
		return
	}
	rt.outcomes[leg.ID] = out
	rt.resolved[leg.ID] = seq
	waiters := rt.waiting[leg.ID]
	delete(rt.waiting, leg.ID)
	forwarders := rt.forwards[leg.ID]
	delete(rt.forwards, leg.ID)
	tr := rt.traces[leg.Trace]
	tr.pending--
	complete := tr.pending == 0
	rt.mu.Unlock()

	if err := rt.journal.WriteOutcome(ctx, outcomeRecord(leg, seq, out)); err != nil {
		slog.Error("journal outcome failed", "trace", leg.Trace, "leg", leg.ID, "error", err)
	}
	rt.metrics.LegResolved(leg.Operation, out.Status, leg.Budget)

	slog.Info("leg resolved",
		"trace", leg.Trace,
		"leg", leg.ID,
		"peer", leg.Receiver,
		"operation", leg.Operation,
		"status", out.Status,
	)

	for _, w := range waiters {
		rt.release(ctx, w, out)
	}
	for _, f := range forwarders {
		rt.resolve(ctx, f, out)
	}

	if complete {
		close(tr.done)
		rt.metrics.TraceCompleted()
		slog.Info("trace complete", "trace", leg.Trace, "legs", len(tr.legs))
	}
}

func failed(err error) chain.Outcome {
	return chain.Failed(err.Error())
}

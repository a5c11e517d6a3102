package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/testutil"
	"github.com/roach88/courier/internal/value"
)

// scripted is a test service driven entirely by its arguments.
func scripted(id ledger.AccountID) (Service, error) {
	return ServiceFunc(func(ctx context.Context, host chain.Host, op string, args value.Object) (chain.Result, error) {
		o := chain.New(host)
		peer, _ := args.Str("peer")
		legBudget, _ := args.Int64("leg_budget")
		deposit, _ := args.Int64("deposit")

		switch op {
		case "echo":
			return chain.Return(args), nil

		case "fail":
			return chain.Result{}, errors.New("rejected by peer")

		case "panic":
			panic("boom")

		case "whoami":
			return chain.Return(value.Object{
				"self":    value.String(host.Self()),
				"acting":  value.String(host.ActingIdentity()),
				"signer":  value.String(host.Signer()),
				"balance": value.Int(host.CurrentBalance()),
				"budget":  value.Int(host.CurrentBudget()),
			}), nil

		case "pair":
			first, _ := args.Str("first")
			second, _ := args.Str("second")
			var opts []chain.ChainOption
			if strict, _ := args["strict"].(value.Bool); strict {
				opts = append(opts, chain.WithPolicy(chain.ContinueOnSuccess))
			}
			h1, err := o.Schedule(ledger.AccountID(peer), first, value.Object{"step": value.Int(1)}, 0, ledger.Budget(legBudget))
			if err != nil {
				return chain.Result{}, err
			}
			h2, err := o.Chain(h1, second, value.Object{"step": value.Int(2)}, 0, ledger.Budget(legBudget), opts...)
			if err != nil {
				return chain.Result{}, err
			}
			return chain.ForwardTo(h2), nil

		case "pay":
			_, err := o.Schedule(ledger.AccountID(peer), "echo", nil, ledger.Balance(deposit), ledger.Budget(legBudget))
			if err != nil {
				return chain.Result{}, err
			}
			if abort, _ := args["then_fail"].(value.Bool); abort {
				return chain.Result{}, errors.New("changed my mind")
			}
			return chain.Return(value.Null{}), nil

		case "greedy":
			// Attaches everything, leaving nothing for its own base fee.
			_, err := o.Schedule(ledger.AccountID(peer), "echo", nil, 0, host.CurrentBudget())
			return chain.Return(value.Null{}), err

		case "loop":
			_, err := o.Schedule(host.Self(), "loop", nil, 0, host.CurrentBudget()-DefaultBaseFee)
			return chain.Return(value.Null{}), err

		case "spawn":
			child, _ := args.Str("child")
			artifact, _ := args.Str("artifact")
			created, err := o.Create(ledger.AccountID(child), artifact, ledger.Balance(deposit), "pk-"+string(host.Signer()))
			if err != nil {
				return chain.Result{}, err
			}
			initLeg, err := o.Chain(created, "whoami", nil, 0, ledger.Budget(legBudget), chain.WithPolicy(chain.ContinueOnSuccess))
			if err != nil {
				return chain.Result{}, err
			}
			return chain.ForwardTo(initLeg), nil

		case "forward_bogus":
			return chain.ForwardTo("no-such-leg"), nil
		}
		return chain.Result{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}), nil
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("scripted", scripted))

	tokens := make([]string, 64)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("trace-%d", i+1)
	}
	rt := New(reg, append([]Option{WithTokens(NewFixedTokens(tokens...))}, opts...)...)

	require.NoError(t, rt.CreateAccount("alice", 1000, "scripted", "pk-alice"))
	require.NoError(t, rt.CreateAccount("bob", 0, "scripted"))
	require.NoError(t, rt.CreateAccount("carol", 50, ""))
	return rt
}

func execute(t *testing.T, rt *Runtime, tx Transaction) Receipt {
	t.Helper()
	receipt, err := rt.Execute(context.Background(), tx)
	require.NoError(t, err)
	return receipt
}

func TestRuntime_SubmitRejections(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   Transaction
		code RuntimeErrorCode
	}{
		{"missing operation", Transaction{Signer: "alice", Receiver: "bob"}, ErrCodeInvalidTransaction},
		{"unknown signer", Transaction{Signer: "zed", Receiver: "bob", Operation: "echo"}, ErrCodeUnknownAccount},
		{"deposit over balance", Transaction{Signer: "carol", Receiver: "bob", Operation: "echo", Deposit: 51}, ErrCodeInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rt.Submit(ctx, tt.tx)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}

	assert.Equal(t, 0, rt.QueueLen())
	carol, _ := rt.Account("carol")
	assert.Equal(t, ledger.Balance(50), carol.Balance, "rejected transaction debits nothing")
}

func TestRuntime_ExecuteEcho(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "bob", Operation: "echo",
		Args:    value.Object{"msg": value.String("hi")},
		Deposit: 30, Budget: 100,
	})

	assert.Equal(t, "trace-1", receipt.Trace)
	assert.Equal(t, chain.StatusSuccess, receipt.Outcome.Status)
	assert.Equal(t, value.Object{"msg": value.String("hi")}, receipt.Outcome.Value)

	alice, _ := rt.Account("alice")
	bob, _ := rt.Account("bob")
	assert.Equal(t, ledger.Balance(970), alice.Balance)
	assert.Equal(t, ledger.Balance(30), bob.Balance)
}

func TestRuntime_Identities(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "bob", Operation: "whoami", Deposit: 5, Budget: 100,
	})

	assert.Equal(t, value.Object{
		"self":    value.String("bob"),
		"acting":  value.String("alice"),
		"signer":  value.String("alice"),
		"balance": value.Int(5),
		"budget":  value.Int(100),
	}, receipt.Outcome.Value)
}

func TestRuntime_ChainedLegsRunInOrder(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("bob"), "first": value.String("whoami"),
			"second": value.String("echo"), "leg_budget": value.Int(100),
		},
		Budget: 300,
	})

	// The root forwards to the second leg.
	assert.Equal(t, chain.StatusSuccess, receipt.Outcome.Status)
	assert.Equal(t, value.Object{"step": value.Int(2)}, receipt.Outcome.Value)

	entries, ok := rt.Trace(receipt.Trace)
	require.True(t, ok)
	require.Len(t, entries, 3)

	root, first, second := entries[0], entries[1], entries[2]
	assert.Equal(t, receipt.Root, root.Leg.ID)
	assert.Equal(t, ledger.AccountID("bob"), first.Leg.Receiver)
	assert.Equal(t, ledger.AccountID("alice"), first.Leg.Origin)
	assert.Equal(t, ledger.AccountID("bob"), second.Leg.Receiver)
	assert.Equal(t, first.Leg.ID, second.Leg.After)

	require.NotNil(t, first.Outcome)
	require.NotNil(t, second.Outcome)
	require.NotNil(t, root.Outcome)
	assert.Less(t, first.Outcome.Seq, second.Outcome.Seq)
	assert.Less(t, second.Outcome.Seq, root.Outcome.Seq, "forwarder resolves after its target")
}

func TestRuntime_ContinueOnFailureByDefault(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("bob"), "first": value.String("fail"),
			"second": value.String("echo"), "leg_budget": value.Int(100),
		},
		Budget: 300,
	})

	assert.Equal(t, chain.StatusSuccess, receipt.Outcome.Status)
	entries, _ := rt.Trace(receipt.Trace)
	assert.Equal(t, chain.StatusFailed, entries[1].Outcome.Status)
	assert.Contains(t, entries[1].Outcome.Reason, "rejected by peer")
}

func TestRuntime_StrictChainAborts(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("bob"), "first": value.String("fail"),
			"second": value.String("echo"), "leg_budget": value.Int(100),
			"strict": value.Bool(true),
		},
		Budget: 300,
	})

	assert.Equal(t, chain.StatusAborted, receipt.Outcome.Status)
	assert.ErrorIs(t, receipt.Outcome.Err(), chain.ErrChainAborted)
}

func TestRuntime_UnknownPeerFailsAtResolution(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("nobody"), "first": value.String("echo"),
			"second": value.String("echo"), "leg_budget": value.Int(100),
		},
		Budget: 300,
	})

	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, string(ErrCodeUnknownAccount))
}

func TestRuntime_NoCode(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "carol", Operation: "echo", Budget: 100})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, string(ErrCodeNoCode))
}

func TestRuntime_FailedInvocationDiscardsEffects(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pay",
		Args: value.Object{
			"peer": value.String("bob"), "deposit": value.Int(200),
			"leg_budget": value.Int(50), "then_fail": value.Bool(true),
		},
		Budget: 100,
	})

	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	entries, _ := rt.Trace(receipt.Trace)
	assert.Len(t, entries, 1, "staged legs of a failed invocation are never scheduled")

	alice, _ := rt.Account("alice")
	bob, _ := rt.Account("bob")
	assert.Equal(t, ledger.Balance(1000), alice.Balance)
	assert.Equal(t, ledger.Balance(0), bob.Balance)
}

func TestRuntime_DepositsMoveOnCommit(t *testing.T) {
	rt := newTestRuntime(t)

	execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pay",
		Args: value.Object{
			"peer": value.String("bob"), "deposit": value.Int(200), "leg_budget": value.Int(50),
		},
		Budget: 100,
	})

	alice, _ := rt.Account("alice")
	bob, _ := rt.Account("bob")
	assert.Equal(t, ledger.Balance(800), alice.Balance)
	assert.Equal(t, ledger.Balance(200), bob.Balance)
}

func TestRuntime_DepositForfeitedOnFailure(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "bob", Operation: "fail", Deposit: 40, Budget: 100,
	})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)

	alice, _ := rt.Account("alice")
	bob, _ := rt.Account("bob")
	assert.Equal(t, ledger.Balance(960), alice.Balance, "consumed at scheduling time")
	assert.Equal(t, ledger.Balance(0), bob.Balance)
}

func TestRuntime_BaseFee(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "bob", Operation: "echo", Budget: DefaultBaseFee - 1})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, string(ErrCodeBudgetExhausted))

	receipt = execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "greedy",
		Args: value.Object{"peer": value.String("bob")}, Budget: 100,
	})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, "ran out of its own budget")
	entries, _ := rt.Trace(receipt.Trace)
	assert.Len(t, entries, 1)
}

func TestRuntime_ServicePanic(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "bob", Operation: "panic", Budget: 100})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, string(ErrCodeServicePanic))
}

func TestRuntime_UnknownOperation(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "bob", Operation: "dance", Budget: 100})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, "unknown operation")
}

func TestRuntime_ForwardUnknownHandle(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "bob", Operation: "forward_bogus", Budget: 100})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, chain.ErrUnknownHandle.Error())
}

func TestRuntime_CreateInstance(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "spawn",
		Args: value.Object{
			"child": value.String("kid"), "artifact": value.String("scripted"),
			"deposit": value.Int(100), "leg_budget": value.Int(50),
		},
		Budget: 200,
	})

	require.Equal(t, chain.StatusSuccess, receipt.Outcome.Status, receipt.Outcome.Reason)
	assert.Equal(t, value.String("kid"), receipt.Outcome.Value.(value.Object)["self"])
	assert.Equal(t, value.String("alice"), receipt.Outcome.Value.(value.Object)["acting"])

	kid, ok := rt.Account("kid")
	require.True(t, ok)
	assert.Equal(t, ledger.Balance(100), kid.Balance)
	assert.Equal(t, "scripted", kid.Artifact)
	assert.Equal(t, []string{"pk-alice"}, kid.Keys)

	alice, _ := rt.Account("alice")
	assert.Equal(t, ledger.Balance(900), alice.Balance)
}

func TestRuntime_CreateCollision(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "spawn",
		Args: value.Object{
			"child": value.String("bob"), "artifact": value.String("scripted"),
			"deposit": value.Int(100), "leg_budget": value.Int(50),
		},
		Budget: 200,
	})

	assert.Equal(t, chain.StatusAborted, receipt.Outcome.Status)
	entries, _ := rt.Trace(receipt.Trace)
	require.Len(t, entries, 3)
	assert.Equal(t, chain.StatusFailed, entries[1].Outcome.Status)
	assert.Contains(t, entries[1].Outcome.Reason, string(ErrCodeAccountExists))

	bob, _ := rt.Account("bob")
	assert.Equal(t, ledger.Balance(0), bob.Balance, "a failed creation funds nobody")
}

func TestRuntime_CreateUnknownArtifactRollsBack(t *testing.T) {
	rt := newTestRuntime(t)

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "spawn",
		Args: value.Object{
			"child": value.String("kid"), "artifact": value.String("missing"),
			"deposit": value.Int(100), "leg_budget": value.Int(50),
		},
		Budget: 200,
	})

	assert.Equal(t, chain.StatusAborted, receipt.Outcome.Status)
	_, exists := rt.Account("kid")
	assert.False(t, exists)
}

func TestRuntime_LegQuota(t *testing.T) {
	rt := newTestRuntime(t, WithMaxLegs(4))

	receipt := execute(t, rt, Transaction{Signer: "alice", Receiver: "alice", Operation: "loop", Budget: 1000})

	entries, _ := rt.Trace(receipt.Trace)
	assert.Len(t, entries, 4)
	last := entries[len(entries)-1]
	require.NotNil(t, last.Outcome)
	assert.Equal(t, chain.StatusFailed, last.Outcome.Status)
	assert.Contains(t, last.Outcome.Reason, string(ErrCodeQuotaExceeded))
}

func TestRuntime_RunAndAwait(t *testing.T) {
	rt := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = rt.Run(ctx)
	}()

	receipt, err := rt.Submit(ctx, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("bob"), "first": value.String("echo"),
			"second": value.String("whoami"), "leg_budget": value.Int(100),
		},
		Budget: 300,
	})
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	out, err := rt.Await(waitCtx, receipt.Trace)
	require.NoError(t, err)
	assert.Equal(t, chain.StatusSuccess, out.Status)

	rt.Stop()
	wg.Wait()

	_, err = rt.Submit(context.Background(), Transaction{Signer: "alice", Receiver: "bob", Operation: "echo", Budget: 10})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRuntime_AwaitUnknownTrace(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Await(context.Background(), "nope")
	assert.Error(t, err)
}

type recordingJournal struct {
	legs     []store.LegRecord
	outcomes []store.OutcomeRecord
}

func (j *recordingJournal) WriteLeg(_ context.Context, rec store.LegRecord) error {
	j.legs = append(j.legs, rec)
	return nil
}

func (j *recordingJournal) WriteOutcome(_ context.Context, rec store.OutcomeRecord) error {
	j.outcomes = append(j.outcomes, rec)
	return nil
}

func TestRuntime_Journal(t *testing.T) {
	j := &recordingJournal{}
	rt := newTestRuntime(t, WithJournal(j))

	execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "spawn",
		Args: value.Object{
			"child": value.String("kid"), "artifact": value.String("scripted"),
			"deposit": value.Int(10), "leg_budget": value.Int(50),
		},
		Budget: 200,
	})

	require.Len(t, j.legs, 3)
	require.Len(t, j.outcomes, 3)
	assert.Equal(t, OpCreateInstance, j.legs[1].Operation)
	assert.Equal(t, []store.ActionRecord{
		{Kind: "create"},
		{Kind: "fund", Amount: 10},
		{Kind: "install", Artifact: "scripted"},
		{Kind: "grant", Credential: "pk-alice"},
	}, j.legs[1].Actions)
	assert.Equal(t, chain.ContinueOnSuccess, j.legs[2].Policy)

	for i := 1; i < len(j.outcomes); i++ {
		assert.Less(t, j.outcomes[i-1].Seq, j.outcomes[i].Seq)
	}
}

func TestRuntime_SQLiteJournalRecordsNullOutcomes(t *testing.T) {
	st := testutil.TempJournal(t)
	rt := newTestRuntime(t, WithJournal(st))

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "pair",
		Args: value.Object{
			"peer": value.String("bob"), "first": value.String("fail"),
			"second": value.String("echo"), "leg_budget": value.Int(100),
			"strict": value.Bool(true),
		},
		Budget: 300,
	})
	require.Equal(t, chain.StatusAborted, receipt.Outcome.Status)

	entries, err := st.ReadTrace(context.Background(), receipt.Trace)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	statuses := map[string]chain.Status{}
	for _, e := range entries {
		require.NotNil(t, e.Outcome, "leg %s has no journaled outcome", e.Leg.Operation)
		assert.Equal(t, value.Null{}, e.Outcome.Value)
		statuses[e.Leg.Operation] = e.Outcome.Status
	}
	assert.Equal(t, map[string]chain.Status{
		"pair": chain.StatusAborted,
		"fail": chain.StatusFailed,
		"echo": chain.StatusAborted,
	}, statuses)

	summaries, err := st.ListTraces(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Complete())
}

func TestRuntime_NullArguments(t *testing.T) {
	st := testutil.TempJournal(t)
	rt := newTestRuntime(t, WithJournal(st))

	receipt := execute(t, rt, Transaction{
		Signer: "alice", Receiver: "alice", Operation: "echo",
		Args:   value.Object{"welcome": value.Null{}},
		Budget: 50,
	})
	require.Equal(t, chain.StatusSuccess, receipt.Outcome.Status)
	assert.Equal(t, value.Object{"welcome": value.Null{}}, receipt.Outcome.Value)

	entries, err := st.ReadTrace(context.Background(), receipt.Trace)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, value.Object{"welcome": value.Null{}}, entries[0].Leg.Args)
}

func TestRuntime_DeterministicLegIDs(t *testing.T) {
	run := func() []chain.Handle {
		rt := newTestRuntime(t)
		receipt := execute(t, rt, Transaction{
			Signer: "alice", Receiver: "alice", Operation: "pair",
			Args: value.Object{
				"peer": value.String("bob"), "first": value.String("echo"),
				"second": value.String("echo"), "leg_budget": value.Int(100),
			},
			Budget: 300,
		})
		entries, _ := rt.Trace(receipt.Trace)
		ids := make([]chain.Handle, len(entries))
		for i, e := range entries {
			ids[i] = e.Leg.ID
		}
		return ids
	}
	assert.Equal(t, run(), run())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("b", scripted))
	require.NoError(t, reg.Register("a", scripted))

	assert.Error(t, reg.Register("a", scripted))
	assert.Error(t, reg.Register("", scripted))
	assert.Error(t, reg.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, reg.Artifacts())

	_, ok := reg.Lookup("zzz")
	assert.False(t, ok)
}

func TestCreateAccount(t *testing.T) {
	rt := newTestRuntime(t)

	assert.True(t, IsAccountExists(rt.CreateAccount("alice", 0, "")))
	assert.Equal(t, ErrCodeUnknownArtifact, CodeOf(rt.CreateAccount("dave", 0, "missing")))

	ids := []ledger.AccountID{}
	for _, a := range rt.Accounts() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []ledger.AccountID{"alice", "bob", "carol"}, ids)
}

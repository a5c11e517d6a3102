package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/mailbox"
	"github.com/roach88/courier/internal/provision"
	"github.com/roach88/courier/internal/services/messenger"
	"github.com/roach88/courier/internal/value"
)

func newEnvironment(t *testing.T, opts ...engine.Option) (*engine.Runtime, mailbox.Store) {
	t.Helper()
	store := mailbox.NewMemoryStore()
	reg := engine.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, messenger.Register(reg, store))

	opts = append([]engine.Option{engine.WithTokens(engine.NewFixedTokens("deploy-1", "deploy-2", "deploy-3"))}, opts...)
	rt := engine.New(reg, opts...)
	require.NoError(t, rt.CreateAccount("alice", 500, ""))
	require.NoError(t, rt.CreateAccount("factory", 0, Artifact))
	return rt, store
}

func deploy(t *testing.T, rt *engine.Runtime, args value.Object) engine.Receipt {
	t.Helper()
	receipt, err := rt.Execute(context.Background(), engine.Transaction{
		Signer: "alice", Receiver: "factory", Operation: OpDeploy,
		Args: args, Deposit: 100, Budget: 1000,
	})
	require.NoError(t, err)
	return receipt
}

func TestEnvironment_DeployFundsChildren(t *testing.T) {
	rt, store := newEnvironment(t)

	receipt := deploy(t, rt, value.Object{
		"count":     value.Int(3),
		"init_args": value.Object{"welcome": value.String("ready")},
	})
	require.Equal(t, chain.StatusSuccess, receipt.Outcome.Status, receipt.Outcome.Reason)
	assert.Equal(t, value.Strings("child0", "child1", "child2"), receipt.Outcome.Value)

	for _, id := range []ledger.AccountID{"child0", "child1", "child2"} {
		child, ok := rt.Account(id)
		require.True(t, ok, "child %s", id)
		assert.Equal(t, ledger.Balance(25), child.Balance)
		assert.Equal(t, messenger.Artifact, child.Artifact)
		assert.Equal(t, []string{"key:alice"}, child.Keys)

		msgs, err := store.List(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []mailbox.Message{{Sender: "factory", Payload: "ready"}}, msgs,
			"init ran on %s with the factory as acting identity", id)
	}

	factory, _ := rt.Account("factory")
	assert.Equal(t, ledger.Balance(25), factory.Balance, "factory retains one share")

	entries, _ := rt.Trace(receipt.Trace)
	require.Len(t, entries, 7)
	for _, e := range entries[1:] {
		if e.Leg.Operation == "init" {
			assert.Equal(t, ledger.Budget(250), e.Leg.Budget)
		}
		require.NotNil(t, e.Outcome)
		assert.Equal(t, chain.StatusSuccess, e.Outcome.Status)
	}
}

func TestEnvironment_DeployZero(t *testing.T) {
	rt, _ := newEnvironment(t)

	receipt := deploy(t, rt, value.Object{"count": value.Int(0)})
	assert.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, ledger.ErrInsufficientResources.Error())

	entries, _ := rt.Trace(receipt.Trace)
	assert.Len(t, entries, 1, "nothing scheduled")
}

func TestEnvironment_CollisionIsolatedToOneChild(t *testing.T) {
	rt, _ := newEnvironment(t)
	require.NoError(t, rt.CreateAccount("child1", 7, ""))

	receipt := deploy(t, rt, value.Object{"count": value.Int(3)})
	require.Equal(t, chain.StatusSuccess, receipt.Outcome.Status)

	statuses := map[ledger.AccountID][]chain.Status{}
	entries, _ := rt.Trace(receipt.Trace)
	for _, e := range entries[1:] {
		statuses[e.Leg.Receiver] = append(statuses[e.Leg.Receiver], e.Outcome.Status)
	}

	assert.Equal(t, []chain.Status{chain.StatusSuccess, chain.StatusSuccess}, statuses["child0"])
	assert.Equal(t, []chain.Status{chain.StatusFailed, chain.StatusAborted}, statuses["child1"])
	assert.Equal(t, []chain.Status{chain.StatusSuccess, chain.StatusSuccess}, statuses["child2"])

	child1, _ := rt.Account("child1")
	assert.Equal(t, ledger.Balance(7), child1.Balance, "pre-existing account untouched")
	assert.Empty(t, child1.Artifact)
}

func TestEnvironment_DeployCountCappedByLegQuota(t *testing.T) {
	rt, _ := newEnvironment(t, engine.WithMaxLegs(6))

	receipt := deploy(t, rt, value.Object{"count": value.Int(3)})
	require.Equal(t, chain.StatusFailed, receipt.Outcome.Status)
	assert.Contains(t, receipt.Outcome.Reason, provision.ErrTooManyChildren.Error())

	entries, _ := rt.Trace(receipt.Trace)
	assert.Len(t, entries, 1, "nothing scheduled")

	// Root leg plus two children fit in six legs.
	receipt = deploy(t, rt, value.Object{"count": value.Int(2)})
	require.Equal(t, chain.StatusSuccess, receipt.Outcome.Status, receipt.Outcome.Reason)
	assert.Equal(t, value.Strings("child0", "child1"), receipt.Outcome.Value)
}

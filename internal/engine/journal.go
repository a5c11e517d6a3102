package engine

import (
	"context"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/store"
)

// Journal durably records legs and outcomes. *store.Store implements it.
// Writes must be idempotent: the same record written twice is one record.
type Journal interface {
	WriteLeg(ctx context.Context, rec store.LegRecord) error
	WriteOutcome(ctx context.Context, rec store.OutcomeRecord) error
}

// Metrics observes leg activity. *observability.Recorder implements it.
type Metrics interface {
	LegScheduled(operation string)
	LegResolved(operation string, status chain.Status, budget ledger.Budget)
	DepositForfeited(amount ledger.Balance)
	TraceCompleted()
}

type nopJournal struct{}

func (nopJournal) WriteLeg(context.Context, store.LegRecord) error { return nil }

func (nopJournal) WriteOutcome(context.Context, store.OutcomeRecord) error { return nil }

type nopMetrics struct{}

func (nopMetrics) LegScheduled(string) {}

func (nopMetrics) LegResolved(string, chain.Status, ledger.Budget) {}

func (nopMetrics) DepositForfeited(ledger.Balance) {}

func (nopMetrics) TraceCompleted() {}

// legRecord converts a leg for the journal.
func legRecord(leg *Leg) store.LegRecord {
	rec := store.LegRecord{
		ID:        leg.ID,
		Trace:     leg.Trace,
		Seq:       leg.Seq,
		Origin:    leg.Origin,
		Signer:    leg.Signer,
		Receiver:  leg.Receiver,
		Operation: leg.Operation,
		Args:      leg.Args,
		Deposit:   leg.Deposit,
		Budget:    leg.Budget,
		After:     leg.After,
		Policy:    leg.Policy,
	}
	for _, a := range leg.Actions {
		rec.Actions = append(rec.Actions, store.ActionRecord{
			Kind:       string(a.Kind),
			Amount:     a.Amount,
			Artifact:   a.Artifact,
			Credential: a.Credential,
		})
	}
	return rec
}

func outcomeRecord(leg *Leg, seq int64, out chain.Outcome) store.OutcomeRecord {
	return store.OutcomeRecord{
		LegID:  leg.ID,
		Trace:  leg.Trace,
		Seq:    seq,
		Status: out.Status,
		Value:  out.Value,
		Reason: out.Reason,
	}
}

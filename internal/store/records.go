package store

import (
	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// LegRecord is one scheduled leg as journaled.
type LegRecord struct {
	ID        chain.Handle     `json:"id"`
	Trace     string           `json:"trace"`
	Seq       int64            `json:"seq"`
	Origin    ledger.AccountID `json:"origin"`
	Signer    ledger.AccountID `json:"signer"`
	Receiver  ledger.AccountID `json:"receiver"`
	Operation string           `json:"operation"`
	Args      value.Object     `json:"args"`
	Deposit   ledger.Balance   `json:"deposit"`
	Budget    ledger.Budget    `json:"budget"`
	After     chain.Handle     `json:"after,omitempty"` // empty for root legs
	Policy    chain.Policy     `json:"policy"`
	Actions   []ActionRecord   `json:"actions,omitempty"`
}

// ActionRecord is one step of a creation batch.
type ActionRecord struct {
	Kind       string         `json:"kind"`
	Amount     ledger.Balance `json:"amount,omitempty"`
	Artifact   string         `json:"artifact,omitempty"`
	Credential string         `json:"credential,omitempty"`
}

// OutcomeRecord is the resolution of one leg.
type OutcomeRecord struct {
	LegID  chain.Handle `json:"leg_id"`
	Trace  string       `json:"trace"`
	Seq    int64        `json:"seq"`
	Status chain.Status `json:"status"`
	Value  value.Value  `json:"value"`
	Reason string       `json:"reason,omitempty"`
}

// Outcome converts the record back to a chain outcome.
func (r OutcomeRecord) Outcome() chain.Outcome {
	v := r.Value
	if v == nil {
		v = value.Null{}
	}
	return chain.Outcome{Status: r.Status, Value: v, Reason: r.Reason}
}

// TraceEntry pairs a leg with its outcome. Outcome is nil while the leg is
// unresolved.
type TraceEntry struct {
	Leg     LegRecord      `json:"leg"`
	Outcome *OutcomeRecord `json:"outcome"`
}

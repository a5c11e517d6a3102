package engine

import (
	"fmt"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// OpCreateInstance is the operation recorded for creation legs.
const OpCreateInstance = "create_instance"

// ActionKind names one step of a creation batch.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionFund    ActionKind = "fund"
	ActionInstall ActionKind = "install"
	ActionGrant   ActionKind = "grant"
)

// Action is one step of a creation batch. Steps run in order within a
// single leg; the first failing step fails the leg.
type Action struct {
	Kind       ActionKind
	Amount     ledger.Balance
	Artifact   string
	Credential string
}

// Leg is one scheduled remote invocation.
//
// A leg is immutable once staged. Its continuation, if any, is data: After
// names the predecessor and Policy decides whether the leg runs once the
// predecessor resolves.
type Leg struct {
	ID    chain.Handle
	Trace string
	Seq   int64

	// Origin is the acting identity at the receiver: the account whose
	// invocation scheduled this leg, or the signer for a root leg.
	Origin   ledger.AccountID
	Signer   ledger.AccountID
	Receiver ledger.AccountID

	Operation string
	Args      value.Object
	Deposit   ledger.Balance
	Budget    ledger.Budget

	After  chain.Handle
	Policy chain.Policy

	Actions []Action
}

// IsContinuation reports whether the leg waits on a predecessor.
func (l *Leg) IsContinuation() bool {
	return l.After != ""
}

// IsCreation reports whether the leg is a creation batch.
func (l *Leg) IsCreation() bool {
	return len(l.Actions) > 0
}

// legID computes the content-addressed ID of leg. Trace and seq make it
// unique; the route and arguments make it verifiable.
func legID(leg *Leg) (chain.Handle, error) {
	args := leg.Args
	if args == nil {
		args = value.Object{}
	}
	digest, err := value.Digest(value.DomainLeg, value.Object{
		"trace":     value.String(leg.Trace),
		"seq":       value.Int(leg.Seq),
		"origin":    value.String(leg.Origin),
		"receiver":  value.String(leg.Receiver),
		"operation": value.String(leg.Operation),
		"args":      args,
		"deposit":   value.Int(leg.Deposit),
		"budget":    value.Int(leg.Budget),
		"after":     value.String(leg.After),
	})
	if err != nil {
		return "", fmt.Errorf("compute leg id: %w", err)
	}
	return chain.Handle(digest), nil
}

// creationActions builds the batch run by a CreateInstance leg.
func creationActions(balance ledger.Balance, artifact, credential string) []Action {
	actions := []Action{
		{Kind: ActionCreate},
		{Kind: ActionFund, Amount: balance},
		{Kind: ActionInstall, Artifact: artifact},
	}
	if credential != "" {
		actions = append(actions, Action{Kind: ActionGrant, Credential: credential})
	}
	return actions
}

package store

import (
	"context"
	"fmt"
)

// WriteLeg journals a scheduled leg. Duplicate ids are silently ignored.
func (s *Store) WriteLeg(ctx context.Context, rec LegRecord) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("write leg: %w", err)
	}
	actionsJSON, err := marshalActions(rec.Actions)
	if err != nil {
		return fmt.Errorf("write leg: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO legs
		(id, trace, seq, origin, signer, receiver, operation, args, deposit, budget, after, policy, actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(rec.ID),
		rec.Trace,
		rec.Seq,
		string(rec.Origin),
		string(rec.Signer),
		string(rec.Receiver),
		rec.Operation,
		argsJSON,
		int64(rec.Deposit),
		int64(rec.Budget),
		string(rec.After),
		rec.Policy.String(),
		actionsJSON,
	)
	if err != nil {
		return fmt.Errorf("write leg: %w", err)
	}
	return nil
}

// WriteOutcome journals the resolution of a leg. A leg resolves once: a
// second outcome for the same leg is silently ignored.
//
// The leg must already be journaled (foreign key constraint).
func (s *Store) WriteOutcome(ctx context.Context, rec OutcomeRecord) error {
	valueJSON, err := marshalValue(rec.Value)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(leg_id, trace, seq, status, value, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(leg_id) DO NOTHING
	`,
		string(rec.LegID),
		rec.Trace,
		rec.Seq,
		string(rec.Status),
		valueJSON,
		rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

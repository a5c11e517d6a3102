package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
)

// ErrTraceNotFound is returned when a trace has no journaled legs.
var ErrTraceNotFound = errors.New("trace not found")

const legColumns = `l.id, l.trace, l.seq, l.origin, l.signer, l.receiver, l.operation,
	l.args, l.deposit, l.budget, l.after, l.policy, l.actions`

// ReadTrace returns every leg of a trace with its outcome, ordered by seq
// then id. Unresolved legs have a nil Outcome.
func (s *Store) ReadTrace(ctx context.Context, trace string) ([]TraceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+legColumns+`,
			o.seq, o.status, o.value, o.reason
		FROM legs l
		LEFT JOIN outcomes o ON o.leg_id = l.id
		WHERE l.trace = ?
		ORDER BY l.seq ASC, l.id COLLATE BINARY ASC
	`, trace)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	var entries []TraceEntry
	for rows.Next() {
		var (
			entry     TraceEntry
			outSeq    sql.NullInt64
			outStatus sql.NullString
			outValue  sql.NullString
			outReason sql.NullString
		)
		leg, err := scanLeg(rows, &outSeq, &outStatus, &outValue, &outReason)
		if err != nil {
			return nil, err
		}
		entry.Leg = leg

		if outStatus.Valid {
			v, err := unmarshalValue(outValue.String)
			if err != nil {
				return nil, fmt.Errorf("leg %s: %w", leg.ID, err)
			}
			entry.Outcome = &OutcomeRecord{
				LegID:  leg.ID,
				Trace:  leg.Trace,
				Seq:    outSeq.Int64,
				Status: chain.Status(outStatus.String),
				Value:  v,
				Reason: outReason.String,
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, trace)
	}
	return entries, nil
}

// ReadLeg retrieves a single leg by id. Returns sql.ErrNoRows if not found.
func (s *Store) ReadLeg(ctx context.Context, id chain.Handle) (LegRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+legColumns+` FROM legs l WHERE l.id = ?`, string(id))
	return scanLeg(row)
}

// TraceSummary describes one journaled trace.
type TraceSummary struct {
	Trace    string
	Signer   ledger.AccountID
	Receiver ledger.AccountID
	Legs     int
	Resolved int
	FirstSeq int64
}

// Complete reports whether every leg of the trace has resolved.
func (t TraceSummary) Complete() bool {
	return t.Legs == t.Resolved
}

// ListTraces returns every journaled trace ordered by its first seq.
func (s *Store) ListTraces(ctx context.Context) ([]TraceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.trace, MIN(l.seq), COUNT(l.id), COUNT(o.leg_id),
			(SELECT r.signer FROM legs r WHERE r.trace = l.trace ORDER BY r.seq LIMIT 1),
			(SELECT r.receiver FROM legs r WHERE r.trace = l.trace ORDER BY r.seq LIMIT 1)
		FROM legs l
		LEFT JOIN outcomes o ON o.leg_id = l.id
		GROUP BY l.trace
		ORDER BY MIN(l.seq) ASC, l.trace COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	summaries := []TraceSummary{}
	for rows.Next() {
		var (
			t                TraceSummary
			signer, receiver string
		)
		if err := rows.Scan(&t.Trace, &t.FirstSeq, &t.Legs, &t.Resolved, &signer, &receiver); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		t.Signer = ledger.AccountID(signer)
		t.Receiver = ledger.AccountID(receiver)
		summaries = append(summaries, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return summaries, nil
}

// MaxSeq returns the highest seq in the journal, 0 when empty. A runtime
// resuming from the journal starts its clock here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM legs
			UNION ALL
			SELECT seq FROM outcomes
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLeg(row scanner, extra ...any) (LegRecord, error) {
	var (
		rec                                 LegRecord
		id, origin, signer, receiver, after string
		argsJSON, policy, actionsJSON       string
		deposit, budget                     int64
	)
	dest := []any{&id, &rec.Trace, &rec.Seq, &origin, &signer, &receiver, &rec.Operation,
		&argsJSON, &deposit, &budget, &after, &policy, &actionsJSON}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LegRecord{}, err
		}
		return LegRecord{}, fmt.Errorf("scan leg: %w", err)
	}

	rec.ID = chain.Handle(id)
	rec.Origin = ledger.AccountID(origin)
	rec.Signer = ledger.AccountID(signer)
	rec.Receiver = ledger.AccountID(receiver)
	rec.After = chain.Handle(after)
	rec.Deposit = ledger.Balance(deposit)
	rec.Budget = ledger.Budget(budget)

	var err error
	if rec.Args, err = unmarshalArgs(argsJSON); err != nil {
		return LegRecord{}, fmt.Errorf("leg %s: %w", id, err)
	}
	if rec.Policy, err = chain.ParsePolicy(policy); err != nil {
		return LegRecord{}, fmt.Errorf("leg %s: %w", id, err)
	}
	if rec.Actions, err = unmarshalActions(actionsJSON); err != nil {
		return LegRecord{}, fmt.Errorf("leg %s: %w", id, err)
	}
	return rec, nil
}

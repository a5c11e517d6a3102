package harness

import (
	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/value"
)

// TraceEvent is one resolved leg, stripped of everything that is not
// reproducible (leg ids, seq numbers). Legs are identified by their index
// within the trace; After refers to the predecessor's index, -1 for none.
type TraceEvent struct {
	Trace     string
	Index     int
	Origin    string
	Receiver  string
	Operation string
	Args      value.Object
	Deposit   uint64
	Budget    uint64
	After     int
	Policy    chain.Policy
	Actions   []string
	Status    chain.Status
	Value     value.Value
	Reason    string
}

// Object renders the event for golden comparison.
func (e TraceEvent) Object() value.Object {
	obj := value.Object{
		"trace":     value.String(e.Trace),
		"index":     value.Int(e.Index),
		"origin":    value.String(e.Origin),
		"receiver":  value.String(e.Receiver),
		"operation": value.String(e.Operation),
		"args":      e.Args.Clone(),
		"deposit":   value.Int(e.Deposit),
		"budget":    value.Int(e.Budget),
		"policy":    value.String(e.Policy.String()),
		"status":    value.String(string(e.Status)),
	}
	// Canonical JSON has no null, so a null value is omitted.
	if _, isNull := e.Value.(value.Null); e.Value != nil && !isNull {
		obj["value"] = e.Value
	}
	if e.After >= 0 {
		obj["after"] = value.Int(e.After)
	}
	if len(e.Actions) > 0 {
		obj["actions"] = value.Strings(e.Actions...)
	}
	if e.Reason != "" {
		obj["reason"] = value.String(e.Reason)
	}
	return obj
}

// traceEvents converts one trace's entries, in seq order.
func traceEvents(token string, entries []store.TraceEntry) []TraceEvent {
	index := make(map[chain.Handle]int, len(entries))
	for i, e := range entries {
		index[e.Leg.ID] = i
	}

	events := make([]TraceEvent, len(entries))
	for i, e := range entries {
		ev := TraceEvent{
			Trace:     token,
			Index:     i,
			Origin:    string(e.Leg.Origin),
			Receiver:  string(e.Leg.Receiver),
			Operation: e.Leg.Operation,
			Args:      e.Leg.Args,
			Deposit:   uint64(e.Leg.Deposit),
			Budget:    uint64(e.Leg.Budget),
			After:     -1,
			Policy:    e.Leg.Policy,
			Status:    chain.StatusPending,
			Value:     value.Null{},
		}
		if e.Leg.After != "" {
			if pred, ok := index[e.Leg.After]; ok {
				ev.After = pred
			}
		}
		for _, a := range e.Leg.Actions {
			ev.Actions = append(ev.Actions, a.Kind)
		}
		if e.Outcome != nil {
			ev.Status = e.Outcome.Status
			ev.Value = e.Outcome.Value
			ev.Reason = e.Outcome.Reason
		}
		events[i] = ev
	}
	return events
}

// StepResult is the final outcome of one flow transaction.
type StepResult struct {
	Trace   string
	Outcome chain.Outcome
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool

	// Steps holds one entry per flow transaction.
	Steps []StepResult

	// Trace holds the legs of every flow transaction, trace by trace.
	Trace []TraceEvent

	// Errors describes every failed expectation.
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

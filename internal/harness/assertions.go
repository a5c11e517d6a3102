package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// AssertionError is returned when an assertion fails. It carries the whole
// trace to make the failure debuggable.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%s #%d] %s.%s %s -> %s\n",
				ev.Trace, ev.Index, ev.Receiver, ev.Operation, render(ev.Args), ev.Status)
		}
	}
	return buf.String()
}

// evaluate runs every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertAccount:
			err = h.assertAccount(a)
		case AssertMailbox:
			err = h.assertMailbox(ctx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// matches reports whether ev satisfies the operation, receiver, status and
// (subset) args filters of a.
func matches(ev TraceEvent, a Assertion) bool {
	if ev.Operation != a.Operation {
		return false
	}
	if a.Receiver != "" && ev.Receiver != a.Receiver {
		return false
	}
	if a.Status != "" && string(ev.Status) != a.Status {
		return false
	}
	return matchArgs(ev.Args, a.Args)
}

// matchArgs reports whether every expected field is present in actual with
// an equal value. Extra fields in actual are ignored.
func matchArgs(actual value.Object, expected map[string]any) bool {
	for k, raw := range expected {
		want, err := value.FromAny(raw)
		if err != nil {
			return false
		}
		got, ok := actual[k]
		if !ok || !reflect.DeepEqual(want, got) {
			return false
		}
	}
	return true
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that operations first appear in the given order.
// Other legs may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int, len(a.Operations))
	for i, ev := range trace {
		if _, seen := positions[ev.Operation]; !seen {
			positions[ev.Operation] = i
		}
	}

	for _, op := range a.Operations {
		if _, ok := positions[op]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", a.Operations),
				Actual:   fmt.Sprintf("missing operation: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Operations); i++ {
		prev, curr := a.Operations[i-1], a.Operations[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", a.Operations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s exactly %d times", describe(a), a.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertAccount(a Assertion) error {
	acct, ok := h.sys.Runtime.Account(ledger.AccountID(a.Account))

	wantExists := a.Exists == nil || *a.Exists
	if ok != wantExists {
		return &AssertionError{
			Type:     AssertAccount,
			Expected: fmt.Sprintf("account %s exists=%t", a.Account, wantExists),
			Actual:   fmt.Sprintf("exists=%t", ok),
		}
	}
	if !ok {
		return nil
	}

	var diffs []string
	if a.Balance != nil && uint64(acct.Balance) != *a.Balance {
		diffs = append(diffs, fmt.Sprintf("balance %d, want %d", acct.Balance, *a.Balance))
	}
	if a.Artifact != "" && acct.Artifact != a.Artifact {
		diffs = append(diffs, fmt.Sprintf("artifact %q, want %q", acct.Artifact, a.Artifact))
	}
	if a.Keys != nil && !slices.Equal(acct.Keys, a.Keys) {
		diffs = append(diffs, fmt.Sprintf("keys %v, want %v", acct.Keys, a.Keys))
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertAccount,
			Expected: "account " + a.Account,
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func (h *Harness) assertMailbox(ctx context.Context, a Assertion) error {
	msgs, err := h.sys.Mailboxes.List(ctx, ledger.AccountID(a.Account))
	if err != nil {
		return err
	}

	got := make([][]string, len(msgs))
	for i, m := range msgs {
		got[i] = []string{string(m.Sender), m.Payload}
	}
	want := a.Messages
	if want == nil {
		want = [][]string{}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertMailbox,
			Expected: fmt.Sprintf("mailbox of %s = %v", a.Account, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func describe(a Assertion) string {
	var b strings.Builder
	b.WriteString("operation " + a.Operation)
	if a.Receiver != "" {
		b.WriteString(" on " + a.Receiver)
	}
	if len(a.Args) > 0 {
		fmt.Fprintf(&b, " with args %v", a.Args)
	}
	if a.Status != "" {
		b.WriteString(" status " + a.Status)
	}
	return b.String()
}

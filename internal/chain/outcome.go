package chain

import (
	"errors"
	"fmt"

	"github.com/roach88/courier/internal/value"
)

// Handle identifies a scheduled leg. It stands for "the result of this call,
// once resolved". Handles are opaque to orchestration code.
type Handle string

// Policy decides whether a continuation runs after its predecessor resolves.
type Policy int

const (
	// ContinueAlways runs the continuation on any resolution. Resolution,
	// not success, triggers it.
	ContinueAlways Policy = iota

	// ContinueOnSuccess runs the continuation only if the predecessor
	// succeeded. Otherwise the continuation resolves as aborted.
	ContinueOnSuccess
)

// String returns the policy name used in traces.
func (p Policy) String() string {
	switch p {
	case ContinueAlways:
		return "always"
	case ContinueOnSuccess:
		return "on_success"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "always":
		return ContinueAlways, nil
	case "on_success":
		return ContinueOnSuccess, nil
	default:
		return 0, fmt.Errorf("unknown continuation policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Allows reports whether a continuation with this policy runs after a
// predecessor with the given outcome.
func (p Policy) Allows(pred Outcome) bool {
	if p == ContinueOnSuccess {
		return pred.Status == StatusSuccess
	}
	return true
}

// Status is the resolution state of a leg.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
)

// Resolved reports whether the status is final.
func (s Status) Resolved() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAborted
}

var (
	// ErrRemoteInvocationFailed is attached to a resolved leg whose peer-side
	// operation failed: the peer rejected it, ran out of its own budget or
	// does not exist. It is never returned at scheduling time.
	ErrRemoteInvocationFailed = errors.New("remote invocation failed")

	// ErrChainAborted is attached to a leg that never ran because its
	// predecessor did not succeed and the continuation required success.
	ErrChainAborted = errors.New("chain aborted")

	// ErrUnknownHandle is returned when continuing after a handle the host
	// never issued.
	ErrUnknownHandle = errors.New("unknown call handle")
)

// Outcome is the resolved state of a leg.
type Outcome struct {
	Status Status
	Value  value.Value
	// Reason describes a failure or abort. Empty on success.
	Reason string
}

// Succeeded returns a success outcome carrying v.
func Succeeded(v value.Value) Outcome {
	if v == nil {
		v = value.Null{}
	}
	return Outcome{Status: StatusSuccess, Value: v}
}

// Failed returns a RemoteInvocationFailed outcome.
func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Value: value.Null{}, Reason: reason}
}

// Aborted returns a ChainAborted outcome for a continuation of pred.
func Aborted(pred Handle) Outcome {
	return Outcome{
		Status: StatusAborted,
		Value:  value.Null{},
		Reason: fmt.Sprintf("predecessor %s did not succeed", pred),
	}
}

// Err returns nil on success, or an error wrapping ErrRemoteInvocationFailed
// or ErrChainAborted.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusSuccess:
		return nil
	case StatusFailed:
		return fmt.Errorf("%w: %s", ErrRemoteInvocationFailed, o.Reason)
	case StatusAborted:
		return fmt.Errorf("%w: %s", ErrChainAborted, o.Reason)
	default:
		return fmt.Errorf("leg not resolved (status %q)", o.Status)
	}
}

// Result is what an invocation hands back to the host.
//
// An invocation either returns a value or forwards: the outcome of the
// forwarded handle becomes this invocation's outcome once it resolves. The
// relay returns the inbox fetched by its second leg this way.
type Result struct {
	Value   value.Value
	Forward Handle
}

// Return builds a value result.
func Return(v value.Value) Result {
	return Result{Value: v}
}

// ForwardTo builds a forwarding result.
func ForwardTo(h Handle) Result {
	return Result{Forward: h}
}

// Forwarding reports whether the result forwards to another leg.
func (r Result) Forwarding() bool {
	return r.Forward != ""
}

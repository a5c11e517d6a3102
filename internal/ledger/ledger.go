// Package ledger defines the metered quantities every remote call carries and
// the read-only view of them an invocation gets.
//
// Balance is the environment-native currency; it persists on accounts and is
// moved by attaching a deposit to a call. Budget is the execution allotment of
// the current invocation only; it is attached per call at scheduling time and
// can never be topped up afterwards.
package ledger

import (
	"errors"
	"fmt"
)

// AccountID names a service instance. Unique within an environment; the
// environment rejects collisions on creation.
type AccountID string

// Balance is a non-negative amount of environment currency.
type Balance uint64

// Budget is a non-negative execution allotment for one invocation.
type Budget uint64

// Ledger is the resource view of the current invocation.
type Ledger interface {
	// CurrentBalance returns the balance still available to attach.
	CurrentBalance() Balance
	// CurrentBudget returns the budget still available to attach.
	CurrentBudget() Budget
}

// ErrInsufficientResources is raised synchronously, before anything is
// scheduled, when a split or attachment cannot be covered.
var ErrInsufficientResources = errors.New("insufficient resources")

// Resource names used in ResourceError.
const (
	ResourceBalance = "balance"
	ResourceBudget  = "budget"
	ResourceCount   = "beneficiaries"
)

// ResourceError carries the quantity that could not be covered.
// It matches ErrInsufficientResources via errors.Is.
type ResourceError struct {
	Resource  string
	Requested uint64
	Available uint64
	Reason    string
}

func (e *ResourceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", ErrInsufficientResources, e.Resource, e.Reason)
	}
	return fmt.Sprintf("%s: %s requested %d, available %d",
		ErrInsufficientResources, e.Resource, e.Requested, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientResources.
func (e *ResourceError) Unwrap() error {
	return ErrInsufficientResources
}

// IsInsufficientResources reports whether err is a resource shortfall.
func IsInsufficientResources(err error) bool {
	return errors.Is(err, ErrInsufficientResources)
}

// Package budget splits an invocation's balance and execution budget across
// downstream beneficiaries.
//
// Every split divides by count+1: one share is reserved for the invoking
// service's own continued execution. Division truncates; the remainder is
// retained by the invoker and is never redistributed.
package budget

import (
	"github.com/roach88/courier/internal/ledger"
)

// Shares is the result of one partition.
//
// For every successful partition:
//
//	Count*PerBalance + RetainedBalance == total balance
//	Count*PerBudget  + RetainedBudget  == total budget
type Shares struct {
	Count int

	PerBalance ledger.Balance
	PerBudget  ledger.Budget

	RetainedBalance ledger.Balance
	RetainedBudget  ledger.Budget
}

// Partition divides totalBalance and totalBudget among count beneficiaries
// plus the invoker.
//
// Returns ErrInsufficientResources (as *ledger.ResourceError) when count is
// not positive, or when either total is zero. A non-zero total smaller than
// count+1 yields zero per-beneficiary shares; callers that need funded shares
// check RequireFunded.
func Partition(totalBalance ledger.Balance, totalBudget ledger.Budget, count int) (Shares, error) {
	if err := checkCount(count); err != nil {
		return Shares{}, err
	}
	if totalBalance == 0 {
		return Shares{}, &ledger.ResourceError{
			Resource: ledger.ResourceBalance,
			Reason:   "nothing to distribute",
		}
	}
	if totalBudget == 0 {
		return Shares{}, &ledger.ResourceError{
			Resource: ledger.ResourceBudget,
			Reason:   "nothing to distribute",
		}
	}

	n := uint64(count)
	perBalance := uint64(totalBalance) / (n + 1)
	perBudget := uint64(totalBudget) / (n + 1)

	return Shares{
		Count:           count,
		PerBalance:      ledger.Balance(perBalance),
		PerBudget:       ledger.Budget(perBudget),
		RetainedBalance: totalBalance - ledger.Balance(n*perBalance),
		RetainedBudget:  totalBudget - ledger.Budget(n*perBudget),
	}, nil
}

// PartitionBudget is Partition for calls that attach no deposit.
// The returned shares carry zero balance.
func PartitionBudget(totalBudget ledger.Budget, count int) (Shares, error) {
	if err := checkCount(count); err != nil {
		return Shares{}, err
	}
	if totalBudget == 0 {
		return Shares{}, &ledger.ResourceError{
			Resource: ledger.ResourceBudget,
			Reason:   "nothing to distribute",
		}
	}

	n := uint64(count)
	per := uint64(totalBudget) / (n + 1)
	return Shares{
		Count:          count,
		PerBudget:      ledger.Budget(per),
		RetainedBudget: totalBudget - ledger.Budget(n*per),
	}, nil
}

// RequireFunded fails if any beneficiary would receive a zero balance or a
// zero budget. A zero funding share is a precondition failure, not a no-op.
func (s Shares) RequireFunded() error {
	if s.PerBalance == 0 {
		return &ledger.ResourceError{
			Resource:  ledger.ResourceBalance,
			Requested: uint64(s.Count) + 1,
			Available: uint64(s.RetainedBalance),
			Reason:    "per-beneficiary balance share is zero",
		}
	}
	return s.RequireBudget()
}

// RequireBudget fails if any beneficiary would receive a zero budget.
func (s Shares) RequireBudget() error {
	if s.PerBudget == 0 {
		return &ledger.ResourceError{
			Resource:  ledger.ResourceBudget,
			Requested: uint64(s.Count) + 1,
			Available: uint64(s.RetainedBudget),
			Reason:    "per-beneficiary budget share is zero",
		}
	}
	return nil
}

func checkCount(count int) error {
	if count <= 0 {
		return &ledger.ResourceError{
			Resource:  ledger.ResourceCount,
			Requested: 0,
			Reason:    "at least one beneficiary is required",
		}
	}
	return nil
}

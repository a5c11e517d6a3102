package ledger

// Meter tracks how much of an invocation's balance and budget has been
// attached to scheduled calls. Amounts are consumed at attach time and never
// released: there is no reservation-then-release.
//
// A Meter belongs to exactly one invocation and is not safe for concurrent use.
type Meter struct {
	balance Balance
	budget  Budget

	attachedBalance Balance
	attachedBudget  Budget
}

// NewMeter creates a meter over the given balance and budget.
func NewMeter(balance Balance, budget Budget) *Meter {
	return &Meter{balance: balance, budget: budget}
}

// CurrentBalance returns the balance not yet attached.
func (m *Meter) CurrentBalance() Balance {
	return m.balance - m.attachedBalance
}

// CurrentBudget returns the budget not yet attached.
func (m *Meter) CurrentBudget() Budget {
	return m.budget - m.attachedBudget
}

// Attach consumes balance and budget for one scheduled call.
// Both amounts are checked before either is consumed.
func (m *Meter) Attach(balance Balance, budget Budget) error {
	if balance > m.CurrentBalance() {
		return &ResourceError{
			Resource:  ResourceBalance,
			Requested: uint64(balance),
			Available: uint64(m.CurrentBalance()),
		}
	}
	if budget > m.CurrentBudget() {
		return &ResourceError{
			Resource:  ResourceBudget,
			Requested: uint64(budget),
			Available: uint64(m.CurrentBudget()),
		}
	}
	m.attachedBalance += balance
	m.attachedBudget += budget
	return nil
}

// Attached returns the totals consumed so far.
func (m *Meter) Attached() (Balance, Budget) {
	return m.attachedBalance, m.attachedBudget
}

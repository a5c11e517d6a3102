// Package provision creates funded child services.
//
// Provision partitions the invoker's balance and budget once, then issues one
// independent chain per child:
//
//	create id -> fund -> install artifact -> grant credential   (one creation leg)
//	    then init with the child's budget share                  (continuation)
//
// Children are mutually independent. A failure in one child's chain never
// affects another, outcomes are not aggregated and nothing is rolled back:
// provisioning is best-effort and non-atomic across children.
package provision

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/courier/internal/budget"
	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// DefaultPrefix names children "child0", "child1", ...
const DefaultPrefix = "child"

// DefaultInitOperation is scheduled on each child after creation.
const DefaultInitOperation = "init"

// legsPerChild is the creation leg plus the init continuation.
const legsPerChild = 2

// ErrTooManyChildren is returned when the host cannot schedule every child
// chain.
var ErrTooManyChildren = errors.New("too many children")

// ServiceSpec holds what one child needs. Funding is not part of it; every
// child gets the same share from the partition. Specs are built per child
// and discarded once the chain is scheduled.
type ServiceSpec struct {
	Artifact      string
	Credential    string
	InitOperation string
	InitArgs      value.Object
}

// SpecFunc builds the spec for child i.
type SpecFunc func(i int) ServiceSpec

// Child describes the chain scheduled for one child.
type Child struct {
	Index int
	ID    ledger.AccountID
	// Created resolves when create, fund, install and grant have run.
	Created chain.Handle
	// Init is the tail of the child's chain.
	Init chain.Handle
}

// Provisioner schedules child chains through an orchestrator.
type Provisioner struct {
	orch   *chain.Orchestrator
	naming func(i int) ledger.AccountID
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithNaming sets the function deriving child i's account id.
func WithNaming(fn func(i int) ledger.AccountID) Option {
	return func(p *Provisioner) {
		p.naming = fn
	}
}

// WithPrefix names children prefix+i.
func WithPrefix(prefix string) Option {
	return WithNaming(PositionalNames(prefix))
}

// PositionalNames returns a naming function producing prefix+i.
func PositionalNames(prefix string) func(int) ledger.AccountID {
	return func(i int) ledger.AccountID {
		return ledger.AccountID(prefix + strconv.Itoa(i))
	}
}

// New creates a provisioner.
func New(orch *chain.Orchestrator, opts ...Option) *Provisioner {
	p := &Provisioner{
		orch:   orch,
		naming: PositionalNames(DefaultPrefix),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision schedules count independent child chains and returns them in
// index order.
//
// The invoker's current balance and budget are partitioned with count
// beneficiaries. Any partition error, a zero funding share, more children
// than the host's leg allowance, or an invalid spec fails the call before a
// single leg is scheduled.
func (p *Provisioner) Provision(count int, specFn SpecFunc) ([]Child, error) {
	host := p.orch.Host()

	shares, err := budget.Partition(host.CurrentBalance(), host.CurrentBudget(), count)
	if err != nil {
		return nil, err
	}
	if err := shares.RequireFunded(); err != nil {
		return nil, err
	}
	if a, ok := host.(chain.LegAllowance); ok {
		if left := a.RemainingLegs(); count > left/legsPerChild {
			return nil, fmt.Errorf("%w: %d children need %d legs each, %d left",
				ErrTooManyChildren, count, legsPerChild, left)
		}
	}

	specs := make([]ServiceSpec, count)
	for i := range specs {
		spec := specFn(i)
		if spec.Artifact == "" {
			return nil, fmt.Errorf("child %d: artifact is required", i)
		}
		if spec.InitOperation == "" {
			spec.InitOperation = DefaultInitOperation
		}
		specs[i] = spec
	}

	children := make([]Child, 0, count)
	for i, spec := range specs {
		id := p.naming(i)

		created, err := p.orch.Create(id, spec.Artifact, shares.PerBalance, spec.Credential)
		if err != nil {
			return children, fmt.Errorf("child %s: %w", id, err)
		}
		initLeg, err := p.orch.Chain(created, spec.InitOperation, spec.InitArgs,
			0, shares.PerBudget, chain.WithPolicy(chain.ContinueOnSuccess))
		if err != nil {
			return children, fmt.Errorf("child %s: %w", id, err)
		}

		children = append(children, Child{Index: i, ID: id, Created: created, Init: initLeg})
	}
	return children, nil
}

// Handles returns the tail handle of each child chain.
func Handles(children []Child) []chain.Handle {
	out := make([]chain.Handle, len(children))
	for i, c := range children {
		out[i] = c.Init
	}
	return out
}

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// Service is the code installed on an account.
//
// Invoke runs one operation in the invocation described by host and returns
// at once: remote calls are scheduled through host, never awaited. An error
// fails the leg and discards everything the invocation scheduled.
type Service interface {
	Invoke(ctx context.Context, host chain.Host, operation string, args value.Object) (chain.Result, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, host chain.Host, operation string, args value.Object) (chain.Result, error)

// Invoke calls f.
func (f ServiceFunc) Invoke(ctx context.Context, host chain.Host, operation string, args value.Object) (chain.Result, error) {
	return f(ctx, host, operation, args)
}

// Constructor instantiates an artifact for the account it is installed on.
type Constructor func(id ledger.AccountID) (Service, error)

// Registry maps artifact names to constructors. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	artifacts map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{artifacts: make(map[string]Constructor)}
}

// Register adds an artifact. Names are unique.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("artifact name is required")
	}
	if ctor == nil {
		return fmt.Errorf("artifact %q: constructor is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.artifacts[name]; exists {
		return fmt.Errorf("artifact %q already registered", name)
	}
	r.artifacts[name] = ctor
	return nil
}

// Lookup returns the constructor for name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.artifacts[name]
	return ctor, ok
}

// Artifacts returns the registered names in sorted order.
func (r *Registry) Artifacts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.artifacts))
	for name := range r.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// account is the engine-owned state of one account.
type account struct {
	id       ledger.AccountID
	balance  ledger.Balance
	artifact string
	keys     []string
	service  Service
}

// AccountView is a read-only snapshot of an account.
type AccountView struct {
	ID       ledger.AccountID `json:"id"`
	Balance  ledger.Balance   `json:"balance"`
	Artifact string           `json:"artifact,omitempty"`
	Keys     []string         `json:"keys"`
}

func (a *account) view() AccountView {
	keys := make([]string, len(a.keys))
	copy(keys, a.keys)
	return AccountView{
		ID:       a.id,
		Balance:  a.balance,
		Artifact: a.artifact,
		Keys:     keys,
	}
}

// install instantiates artifact on a.
func (a *account) install(reg *Registry, artifact string) error {
	ctor, ok := reg.Lookup(artifact)
	if !ok {
		return newRuntimeError(ErrCodeUnknownArtifact, a.id, "artifact %q is not registered", artifact)
	}
	svc, err := ctor(a.id)
	if err != nil {
		return fmt.Errorf("install %s on %s: %w", artifact, a.id, err)
	}
	a.artifact = artifact
	a.service = svc
	return nil
}

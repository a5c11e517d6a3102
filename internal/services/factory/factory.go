// Package factory is the service that deploys funded child services.
//
// deploy is best-effort and non-atomic across children: it returns the child
// ids as soon as the chains are scheduled, each child succeeds or fails on
// its own, and nothing is rolled back. Watch each child's trace legs to learn
// how it went.
package factory

import (
	"context"
	"fmt"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/provision"
	"github.com/roach88/courier/internal/services/messenger"
	"github.com/roach88/courier/internal/value"
)

// Artifact is the registry name of the factory.
const Artifact = "factory"

// OpDeploy provisions children.
const OpDeploy = "deploy"

// Service is one factory instance.
type Service struct {
	id ledger.AccountID
}

var _ engine.Service = (*Service)(nil)

// New creates the factory for account id.
func New(id ledger.AccountID) *Service {
	return &Service{id: id}
}

// Register adds the factory artifact to reg.
func Register(reg *engine.Registry) error {
	return reg.Register(Artifact, func(id ledger.AccountID) (engine.Service, error) {
		return New(id), nil
	})
}

// CredentialFor derives the access credential granted to children deployed
// on behalf of signer.
func CredentialFor(signer ledger.AccountID) string {
	return "key:" + string(signer)
}

// Invoke implements engine.Service.
func (s *Service) Invoke(_ context.Context, host chain.Host, op string, args value.Object) (chain.Result, error) {
	if op != OpDeploy {
		return chain.Result{}, fmt.Errorf("%w: %s", engine.ErrUnknownOperation, op)
	}
	return s.deploy(host, args)
}

// DeployArgs are the arguments of deploy.
type DeployArgs struct {
	Count         int
	Artifact      string
	InitOperation string
	InitArgs      value.Object
	Prefix        string
}

// ParseDeployArgs reads deploy arguments, applying defaults.
func ParseDeployArgs(args value.Object) (DeployArgs, error) {
	count, ok := args.Int64("count")
	if !ok {
		return DeployArgs{}, fmt.Errorf("deploy: count must be an integer")
	}
	if count < 0 {
		return DeployArgs{}, fmt.Errorf("deploy: count must not be negative, got %d", count)
	}

	d := DeployArgs{
		Count:         int(count),
		Artifact:      messenger.Artifact,
		InitOperation: provision.DefaultInitOperation,
		Prefix:        provision.DefaultPrefix,
	}
	if v, ok := args.Str("artifact"); ok && v != "" {
		d.Artifact = v
	}
	if v, ok := args.Str("init_operation"); ok && v != "" {
		d.InitOperation = v
	}
	if v, ok := args.Str("prefix"); ok && v != "" {
		d.Prefix = v
	}
	if raw, present := args["init_args"]; present {
		obj, ok := raw.(value.Object)
		if !ok {
			return DeployArgs{}, fmt.Errorf("deploy: init_args must be an object")
		}
		d.InitArgs = obj
	}
	return d, nil
}

func (s *Service) deploy(host chain.Host, args value.Object) (chain.Result, error) {
	d, err := ParseDeployArgs(args)
	if err != nil {
		return chain.Result{}, err
	}

	credential := CredentialFor(host.Signer())
	p := provision.New(chain.New(host), provision.WithPrefix(d.Prefix))

	children, err := p.Provision(d.Count, func(i int) provision.ServiceSpec {
		initArgs := d.InitArgs.Clone()
		initArgs["index"] = value.Int(i)
		return provision.ServiceSpec{
			Artifact:      d.Artifact,
			Credential:    credential,
			InitOperation: d.InitOperation,
			InitArgs:      initArgs,
		}
	})
	if err != nil {
		return chain.Result{}, fmt.Errorf("deploy: %w", err)
	}

	ids := make(value.List, len(children))
	for i, c := range children {
		ids[i] = value.String(c.ID)
	}
	return chain.Return(ids), nil
}

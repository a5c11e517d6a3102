// Package messenger is the relay service: every account running it owns a
// mailbox, accepts messages from other accounts and can relay a message to a
// peer and fetch the peer's inbox in one causally ordered chain.
package messenger

import (
	"context"
	"fmt"

	"github.com/roach88/courier/internal/budget"
	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/mailbox"
	"github.com/roach88/courier/internal/value"
)

// Artifact is the registry name of the messenger.
const Artifact = "messenger"

// Operations.
const (
	OpInit          = "init"
	OpRecordMessage = "record_message"
	OpReadAllFor    = "read_all_for"
	OpClearAllFor   = "clear_all_for"
	OpRelay         = "relay"
	OpSend          = "send"
	OpReadGrouped   = "read_grouped"
)

// relayLegs is the number of legs a relay schedules; each gets an equal
// budget share and the relay keeps one.
const relayLegs = 2

// sendLegs is the number of legs a send schedules: half the budget goes to
// the delivery.
const sendLegs = 1

// Service is one messenger instance.
type Service struct {
	id      ledger.AccountID
	mailbox *mailbox.Mailbox
}

var _ engine.Service = (*Service)(nil)

// New creates the messenger for account id over store.
func New(id ledger.AccountID, store mailbox.Store) *Service {
	return &Service{id: id, mailbox: mailbox.New(store)}
}

// Constructor returns the engine constructor. All instances share store,
// each keyed by its own account.
func Constructor(store mailbox.Store) engine.Constructor {
	return func(id ledger.AccountID) (engine.Service, error) {
		return New(id, store), nil
	}
}

// Register adds the messenger artifact to reg.
func Register(reg *engine.Registry, store mailbox.Store) error {
	return reg.Register(Artifact, Constructor(store))
}

// Invoke implements engine.Service.
func (s *Service) Invoke(ctx context.Context, host chain.Host, op string, args value.Object) (chain.Result, error) {
	switch op {
	case OpInit:
		return s.init(ctx, host, args)
	case OpRecordMessage:
		return s.recordMessage(ctx, host, args)
	case OpReadAllFor:
		return s.readAllFor(ctx, host, args)
	case OpClearAllFor:
		return s.clearAllFor(ctx, host, args)
	case OpRelay:
		return s.relay(host, args)
	case OpSend:
		return s.send(host, args)
	case OpReadGrouped:
		return s.readGrouped(ctx, host, args)
	default:
		return chain.Result{}, fmt.Errorf("%w: %s", engine.ErrUnknownOperation, op)
	}
}

// init optionally leaves a welcome message from the acting identity.
func (s *Service) init(ctx context.Context, host chain.Host, args value.Object) (chain.Result, error) {
	if welcome, ok := args.Str("welcome"); ok && welcome != "" {
		if err := s.mailbox.Record(ctx, host.ActingIdentity(), host.Self(), welcome); err != nil {
			return chain.Result{}, err
		}
	}
	return chain.Return(value.Null{}), nil
}

// recordMessage appends payload to this account's mailbox. The sender is
// always the acting identity; a sender argument naming anyone else is
// rejected.
func (s *Service) recordMessage(ctx context.Context, host chain.Host, args value.Object) (chain.Result, error) {
	payload, ok := args.Str("payload")
	if !ok {
		return chain.Result{}, fmt.Errorf("record_message: payload must be a string")
	}
	acting := host.ActingIdentity()
	if sender, ok := args.Str("sender"); ok && ledger.AccountID(sender) != acting {
		return chain.Result{}, fmt.Errorf("%w: %s may not record as %s", mailbox.ErrUnauthorized, acting, sender)
	}
	if err := s.mailbox.Record(ctx, acting, host.Self(), payload); err != nil {
		return chain.Result{}, err
	}
	return chain.Return(value.Null{}), nil
}

// readAllFor returns [[sender, payload], ...] for owner, this account by
// default.
func (s *Service) readAllFor(ctx context.Context, host chain.Host, args value.Object) (chain.Result, error) {
	owner := ownerArg(host, args)
	msgs, err := s.mailbox.ReadAll(ctx, owner)
	if err != nil {
		return chain.Result{}, err
	}
	return chain.Return(Messages(msgs)), nil
}

// readGrouped returns owner's inbox as {sender: [payload, ...]}. Payloads
// keep their arrival order within each sender.
func (s *Service) readGrouped(ctx context.Context, host chain.Host, args value.Object) (chain.Result, error) {
	msgs, err := s.mailbox.ReadAll(ctx, ownerArg(host, args))
	if err != nil {
		return chain.Result{}, err
	}
	return chain.Return(GroupBySender(msgs)), nil
}

func (s *Service) clearAllFor(ctx context.Context, host chain.Host, args value.Object) (chain.Result, error) {
	owner := ownerArg(host, args)
	if err := s.mailbox.ClearAll(ctx, host.ActingIdentity(), owner); err != nil {
		return chain.Result{}, err
	}
	return chain.Return(value.Null{}), nil
}

// relay records payload in peer's mailbox and then reads peer's inbox back,
// as one chain on peer. The inbox becomes the relay's result.
//
// The read runs even if delivery failed, so the caller always sees the
// peer's state; pass strict=true to abort the read instead.
func (s *Service) relay(host chain.Host, args value.Object) (chain.Result, error) {
	peer, ok := args.Str("peer")
	if !ok || peer == "" {
		return chain.Result{}, fmt.Errorf("relay: peer is required")
	}
	payload, ok := args.Str("payload")
	if !ok {
		return chain.Result{}, fmt.Errorf("relay: payload must be a string")
	}

	shares, err := budget.PartitionBudget(host.CurrentBudget(), relayLegs)
	if err != nil {
		return chain.Result{}, err
	}
	if err := shares.RequireBudget(); err != nil {
		return chain.Result{}, err
	}

	var opts []chain.ChainOption
	if strict, _ := args["strict"].(value.Bool); strict {
		opts = append(opts, chain.WithPolicy(chain.ContinueOnSuccess))
	}

	o := chain.New(host)
	delivered, err := o.Schedule(ledger.AccountID(peer), OpRecordMessage,
		value.Object{"payload": value.String(payload)}, 0, shares.PerBudget)
	if err != nil {
		return chain.Result{}, err
	}
	inbox, err := o.Chain(delivered, OpReadAllFor,
		value.Object{"owner": value.String(peer)}, 0, shares.PerBudget, opts...)
	if err != nil {
		return chain.Result{}, err
	}
	return chain.ForwardTo(inbox), nil
}

// send delivers payload to peer without waiting for it. The delivery leg
// is scheduled and send succeeds at once; a failed delivery shows up only
// in the trace.
func (s *Service) send(host chain.Host, args value.Object) (chain.Result, error) {
	peer, ok := args.Str("peer")
	if !ok || peer == "" {
		return chain.Result{}, fmt.Errorf("send: peer is required")
	}
	payload, ok := args.Str("payload")
	if !ok {
		return chain.Result{}, fmt.Errorf("send: payload must be a string")
	}

	shares, err := budget.PartitionBudget(host.CurrentBudget(), sendLegs)
	if err != nil {
		return chain.Result{}, err
	}
	if err := shares.RequireBudget(); err != nil {
		return chain.Result{}, err
	}

	if _, err := chain.New(host).Schedule(ledger.AccountID(peer), OpRecordMessage,
		value.Object{"payload": value.String(payload)}, 0, shares.PerBudget); err != nil {
		return chain.Result{}, err
	}
	return chain.Return(value.Null{}), nil
}

func ownerArg(host chain.Host, args value.Object) ledger.AccountID {
	if owner, ok := args.Str("owner"); ok && owner != "" {
		return ledger.AccountID(owner)
	}
	return host.Self()
}

// Messages renders msgs as [[sender, payload], ...].
func Messages(msgs []mailbox.Message) value.List {
	out := make(value.List, len(msgs))
	for i, m := range msgs {
		out[i] = value.Strings(string(m.Sender), m.Payload)
	}
	return out
}

// GroupBySender renders msgs as {sender: [payload, ...]}.
func GroupBySender(msgs []mailbox.Message) value.Object {
	out := value.Object{}
	for _, m := range msgs {
		sender := string(m.Sender)
		payloads, _ := out[sender].(value.List)
		out[sender] = append(payloads, value.String(m.Payload))
	}
	return out
}

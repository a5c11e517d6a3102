package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/mailbox"
	"github.com/roach88/courier/internal/services/factory"
	"github.com/roach88/courier/internal/services/messenger"
	"github.com/roach88/courier/internal/store"
)

// System is a runtime built from an environment, with the resources it owns.
type System struct {
	Runtime   *engine.Runtime
	Journal   *store.Store // nil without a journal
	Mailboxes mailbox.Store
}

// Close releases the journal.
func (s *System) Close() error {
	if s.Journal == nil {
		return nil
	}
	return s.Journal.Close()
}

// NewRegistry returns a registry with every built-in service.
func NewRegistry(mailboxes mailbox.Store) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if err := messenger.Register(reg, mailboxes); err != nil {
		return nil, err
	}
	if err := factory.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Build opens the journal (if any), registers the built-in services and
// creates the genesis accounts. opts are applied after the environment's own
// settings, so callers can override them.
//
// Accounts are not persisted: a runtime resumed from a journal starts from
// genesis balances and continues the journal's logical clock.
func (e *Environment) Build(ctx context.Context, opts ...engine.Option) (*System, error) {
	sys := &System{}
	var envOpts []engine.Option

	if e.Journal != "" {
		st, err := store.Open(e.Journal)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			st.Close()
			return nil, err
		}
		sys.Journal = st
		sys.Mailboxes = st.Mailboxes(messenger.Artifact)
		envOpts = append(envOpts, engine.WithJournal(st), engine.WithResumeAfter(seq))
		slog.Debug("journal opened", "path", e.Journal, "seq", seq)
	} else {
		sys.Mailboxes = mailbox.NewMemoryStore()
	}

	if e.BaseFee != nil {
		envOpts = append(envOpts, engine.WithBaseFee(ledger.Budget(*e.BaseFee)))
	}
	if e.MaxLegs > 0 {
		envOpts = append(envOpts, engine.WithMaxLegs(e.MaxLegs))
	}

	reg, err := NewRegistry(sys.Mailboxes)
	if err != nil {
		sys.Close()
		return nil, err
	}
	sys.Runtime = engine.New(reg, append(envOpts, opts...)...)

	for _, acct := range e.Accounts {
		err := sys.Runtime.CreateAccount(ledger.AccountID(acct.ID), ledger.Balance(acct.Balance), acct.Artifact, acct.Keys...)
		if err != nil {
			sys.Close()
			return nil, fmt.Errorf("account %q: %w", acct.ID, err)
		}
	}
	return sys, nil
}

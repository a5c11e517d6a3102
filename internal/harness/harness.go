package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/courier/internal/config"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/testutil"
	"github.com/roach88/courier/internal/value"
)

// Harness runs one scenario against a fresh in-memory runtime.
type Harness struct {
	sys    *config.System
	logger *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for step progress. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result. An error means the
// scenario could not run at all; failed expectations are in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	env, err := environment(scenario)
	if err != nil {
		return nil, err
	}
	sys, err := env.Build(ctx, engine.WithTokens(testutil.NewSequentialTokens(scenario.Name)))
	if err != nil {
		return nil, fmt.Errorf("build environment: %w", err)
	}
	defer sys.Close()

	h := &Harness{sys: sys, logger: o.logger}
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, err
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, err
	}

	for _, msg := range h.evaluate(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// environment merges the scenario's environment file and inline accounts.
func environment(s *Scenario) (*config.Environment, error) {
	env := &config.Environment{}
	if s.Environment != "" {
		loaded, err := config.Load(s.Environment)
		if err != nil {
			return nil, err
		}
		env = loaded
		// Scenarios always run in memory.
		env.Journal = ""
	}
	env.Accounts = append(env.Accounts, s.Accounts...)
	if s.MaxLegs > 0 {
		env.MaxLegs = s.MaxLegs
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []TxStep) error {
	for i, step := range setup {
		receipt, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if err := receipt.Outcome.Err(); err != nil {
			return fmt.Errorf("setup[%d]: %s on %s did not succeed: %w", i, step.Operation, step.Receiver, err)
		}
		h.logger.Info("setup step completed", "step", i, "operation", step.Operation, "trace", receipt.Trace)
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []TxStep, result *Result) error {
	for i, step := range flow {
		receipt, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, StepResult{Trace: receipt.Trace, Outcome: receipt.Outcome})

		entries, _ := h.sys.Runtime.Trace(receipt.Trace)
		result.Trace = append(result.Trace, traceEvents(receipt.Trace, entries)...)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, receipt) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Operation, msg))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"operation", step.Operation,
			"trace", receipt.Trace,
			"status", receipt.Outcome.Status,
		)
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, step TxStep) (engine.Receipt, error) {
	args, err := value.ObjectFromAny(step.Args)
	if err != nil {
		return engine.Receipt{}, fmt.Errorf("args: %w", err)
	}
	return h.sys.Runtime.Execute(ctx, engine.Transaction{
		Signer:    ledger.AccountID(step.Signer),
		Receiver:  ledger.AccountID(step.Receiver),
		Operation: step.Operation,
		Args:      args,
		Deposit:   ledger.Balance(step.Deposit),
		Budget:    ledger.Budget(step.Budget),
	})
}

func checkExpect(expect *ExpectClause, receipt engine.Receipt) []string {
	var errs []string
	out := receipt.Outcome

	if string(out.Status) != expect.Status {
		errs = append(errs, fmt.Sprintf("expected status %s, got %s (%s)", expect.Status, out.Status, out.Reason))
	}
	if expect.Value != nil {
		want, err := value.FromAny(expect.Value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("expected value: %v", err))
		} else if !reflect.DeepEqual(want, out.Value) {
			errs = append(errs, fmt.Sprintf("expected value %s, got %s", render(want), render(out.Value)))
		}
	}
	if expect.Error != "" && !strings.Contains(out.Reason, expect.Error) {
		errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.Error, out.Reason))
	}
	return errs
}

func render(v value.Value) string {
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

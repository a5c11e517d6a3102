package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/config"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
	"github.com/roach88/courier/internal/value"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Signer    string
	Receiver  string
	Operation string
	Args      string
	Deposit   uint64
	Budget    uint64
}

// CallResult reports a transaction and every leg it produced.
type CallResult struct {
	Trace  string      `json:"trace"`
	Root   string      `json:"root"`
	Status string      `json:"status"`
	Value  value.Value `json:"value"`
	Error  string      `json:"error,omitempty"`
	Legs   []TraceLeg  `json:"legs"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <environment>",
		Short: "Submit one transaction and run it to completion",
		Long: `Build the runtime described by an environment file, submit one signed
transaction and process every leg it schedules.

Without a journal in the environment, state lives only for this call.
With a journal, the trace is persisted and can be inspected with
'courier trace'.

Exit codes:
  0 - The transaction succeeded
  1 - The transaction was rejected or its root leg failed
  2 - Command error (bad environment, invalid --args, etc.)

Examples:
  courier call env.yaml --signer alice --receiver alice --op relay \
    --args '{"peer":"bob","payload":"Hey!"}' --budget 300
  courier call env.yaml --signer alice --receiver factory --op deploy \
    --args '{"count":3}' --deposit 100 --budget 1000 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Signer, "signer", "", "signing account (required)")
	cmd.Flags().StringVar(&opts.Receiver, "receiver", "", "account to invoke (required)")
	cmd.Flags().StringVar(&opts.Operation, "op", "", "operation to invoke (required)")
	cmd.Flags().StringVar(&opts.Args, "args", "{}", "operation arguments as a JSON object")
	cmd.Flags().Uint64Var(&opts.Deposit, "deposit", 0, "deposit attached from the signer's balance")
	cmd.Flags().Uint64Var(&opts.Budget, "budget", 0, "execution budget")
	_ = cmd.MarkFlagRequired("signer")
	_ = cmd.MarkFlagRequired("receiver")
	_ = cmd.MarkFlagRequired("op")

	return cmd
}

func runCall(opts *CallOptions, envPath string, cmd *cobra.Command) error {
	out := newPrinter(cmd, opts.RootOptions)

	args, err := value.ParseObject([]byte(opts.Args))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}

	env, err := config.Load(envPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load environment", err)
	}
	sys, err := env.Build(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build environment", err)
	}
	defer sys.Close()
	out.debugf("environment %s: %d accounts", envPath, len(sys.Runtime.Accounts()))

	receipt, err := sys.Runtime.Execute(cmd.Context(), engine.Transaction{
		Signer:    ledger.AccountID(opts.Signer),
		Receiver:  ledger.AccountID(opts.Receiver),
		Operation: opts.Operation,
		Args:      args,
		Deposit:   ledger.Balance(opts.Deposit),
		Budget:    ledger.Budget(opts.Budget),
	})
	if err != nil {
		code := string(engine.CodeOf(err))
		if code == "" {
			code = "E_RUNTIME"
		}
		if outErr := out.failure(code, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "transaction rejected", err)
	}

	result := CallResult{
		Trace:  receipt.Trace,
		Root:   string(receipt.Root),
		Status: string(receipt.Outcome.Status),
		Value:  receipt.Outcome.Value,
		Error:  receipt.Outcome.Reason,
		Legs:   []TraceLeg{},
	}
	if entries, ok := sys.Runtime.Trace(receipt.Trace); ok {
		result.Legs = buildTraceResult(receipt.Trace, entries, "").Timeline
	}

	err = out.result(result.Trace, result, func(w io.Writer) error {
		fmt.Fprintf(w, "Trace: %s\n", result.Trace)
		fmt.Fprintf(w, "Status: %s\n", result.Status)
		if result.Error != "" {
			fmt.Fprintf(w, "Error: %s\n", result.Error)
		}
		fmt.Fprintf(w, "Value: %s\n", renderValue(result.Value))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Legs ===")
		for _, leg := range result.Legs {
			formatLeg(w, leg, opts.Verbose)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if receipt.Outcome.Status != chain.StatusSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("transaction %s: %s", result.Status, result.Error))
	}
	return nil
}

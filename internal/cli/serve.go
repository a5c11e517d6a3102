package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/config"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/gateway"
	"github.com/roach88/courier/internal/observability"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <environment>",
		Short: "Run the runtime behind the HTTP gateway",
		Long: `Build the runtime described by an environment file and serve it over
HTTP until interrupted.

Endpoints:
  POST /v1/transactions     submit a transaction and wait for its outcome
  GET  /v1/accounts[/:id]   account balances, artifacts and keys
  GET  /v1/traces/:token    every leg of a trace
  GET  /metrics             Prometheus metrics
  GET  /health              liveness

Example:
  courier serve env.yaml --addr :8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(opts *ServeOptions, envPath string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose, slog.LevelInfo)

	env, err := config.Load(envPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load environment", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := observability.Default()
	sys, err := env.Build(ctx, engine.WithMetrics(recorder))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build environment", err)
	}
	defer func() {
		if closeErr := sys.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	gwOpts := []gateway.Option{gateway.WithRecorder(recorder), gateway.WithLogger(slog.Default())}
	if sys.Journal != nil {
		gwOpts = append(gwOpts, gateway.WithJournal(sys.Journal))
	}
	srv := gateway.New(sys.Runtime, gwOpts...)

	slog.Info("runtime ready", "environment", envPath, "accounts", len(sys.Runtime.Accounts()), "addr", opts.Addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s. Press Ctrl-C to stop.\n", envPath, opts.Addr)

	if err := srv.Serve(ctx, opts.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "gateway error", err)
	}

	slog.Info("runtime stopped gracefully")
	return nil
}

package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Runs int
}

// ReplayScenarioResult holds the replay result for one scenario.
type ReplayScenarioResult struct {
	Name          string `json:"name"`
	Runs          int    `json:"runs"`
	Legs          int    `json:"legs"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenarios        []ReplayScenarioResult `json:"scenarios"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario-file-or-dir>...",
		Short: "Run scenarios repeatedly and verify determinism",
		Long: `Run each scenario several times against fresh runtimes and compare the
canonical traces. Every run must produce byte-identical traces: the same
legs, budgets, deposits, outcomes and causal links.

Exit codes:
  0 - All scenarios are deterministic
  1 - Some scenario produced differing traces or failed to run
  2 - Command error (invalid paths, etc.)

Examples:
  courier replay ./scenarios
  courier replay ./scenarios/factory_deploy.yaml --runs 5`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of runs per scenario (at least 2)")

	return cmd
}

func runReplay(opts *ReplayOptions, paths []string, cmd *cobra.Command) error {
	if opts.Runs < 2 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--runs must be at least 2, got %d", opts.Runs))
	}

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	result := ReplayResult{Scenarios: []ReplayScenarioResult{}, AllDeterministic: true}
	for _, f := range files {
		sr := replayScenario(cmd, f, opts.Runs)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	err := newPrinter(cmd, opts.RootOptions).result("", result, func(w io.Writer) error {
		for _, sr := range result.Scenarios {
			mark := "✓"
			if !sr.Deterministic {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s (%d runs, %d legs)\n", mark, sr.Name, sr.Runs, sr.Legs)
			if sr.Error != "" {
				fmt.Fprintf(w, "  %s\n", sr.Error)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func replayScenario(cmd *cobra.Command, file string, runs int) ReplayScenarioResult {
	sr := ReplayScenarioResult{Name: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Name = scenario.Name

	var first []byte
	for i := 0; i < runs; i++ {
		result, err := harness.Run(cmd.Context(), scenario)
		if err != nil {
			sr.Error = fmt.Sprintf("run %d: %v", i+1, err)
			return sr
		}
		snapshot, err := harness.Snapshot(scenario.Name, result)
		if err != nil {
			sr.Error = fmt.Sprintf("run %d: %v", i+1, err)
			return sr
		}
		sr.Runs++
		if i == 0 {
			first = snapshot
			sr.Legs = len(result.Trace)
			continue
		}
		if !bytes.Equal(first, snapshot) {
			sr.Error = fmt.Sprintf("run %d differs from run 1", i+1)
			return sr
		}
	}
	sr.Deterministic = true
	return sr
}

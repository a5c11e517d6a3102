package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateFileResult reports one environment file.
type ValidateFileResult struct {
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Accounts int      `json:"accounts"`
	Errors   []string `json:"errors,omitempty"`
}

// ValidateResult holds the overall validation result.
type ValidateResult struct {
	Files    []ValidateFileResult `json:"files"`
	AllValid bool                 `json:"all_valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <environment>...",
		Short: "Check environment files without running anything",
		Long: `Decode and validate environment files (.yaml, .toml or .cue), then
build each runtime in memory to check that every account can be created
and every artifact is registered. Journals are never opened.

Exit codes:
  0 - All environments are valid
  1 - Some environment is invalid
  2 - Command error (file not found)

Examples:
  courier validate env.yaml
  courier validate env.yaml staging.toml prod.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	result := ValidateResult{AllValid: true}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return WrapExitError(ExitCommandError, "environment not found", err)
		}
		fr := validateEnvironment(cmd, path)
		if !fr.Valid {
			result.AllValid = false
		}
		result.Files = append(result.Files, fr)
	}

	err := newPrinter(cmd, opts.RootOptions).result("", result, func(w io.Writer) error {
		for _, fr := range result.Files {
			if fr.Valid {
				fmt.Fprintf(w, "✓ %s (%d accounts)\n", fr.Path, fr.Accounts)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", fr.Path)
			for _, e := range fr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !result.AllValid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func validateEnvironment(cmd *cobra.Command, path string) ValidateFileResult {
	fr := ValidateFileResult{Path: path}

	env, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fr.Errors = verr.Problems
		} else {
			fr.Errors = []string{err.Error()}
		}
		return fr
	}

	// Validation must not create or migrate a journal.
	env.Journal = ""
	sys, err := env.Build(cmd.Context())
	if err != nil {
		fr.Errors = []string{err.Error()}
		return fr
	}
	defer sys.Close()

	fr.Valid = true
	fr.Accounts = len(sys.Runtime.Accounts())
	return fr
}

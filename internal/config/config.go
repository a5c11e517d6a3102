// Package config loads environment files: the genesis accounts and runtime
// settings a courier runtime starts from.
//
// Environment files may be YAML (.yaml, .yml), TOML (.toml) or CUE (.cue).
// CUE files are unified with the #Environment schema before decoding.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported environment file format")

// Account is one genesis account.
type Account struct {
	ID       string   `yaml:"id" toml:"id" json:"id"`
	Balance  uint64   `yaml:"balance" toml:"balance" json:"balance"`
	Artifact string   `yaml:"artifact,omitempty" toml:"artifact" json:"artifact,omitempty"`
	Keys     []string `yaml:"keys,omitempty" toml:"keys" json:"keys,omitempty"`
}

// Environment describes a runtime and its genesis accounts.
type Environment struct {
	Accounts []Account `yaml:"accounts" toml:"accounts" json:"accounts"`

	// BaseFee overrides the per-invocation base fee when set.
	BaseFee *uint64 `yaml:"base_fee,omitempty" toml:"base_fee" json:"base_fee,omitempty"`

	// MaxLegs is the per-trace leg quota. Zero keeps the runtime default.
	MaxLegs int `yaml:"max_legs,omitempty" toml:"max_legs" json:"max_legs,omitempty"`

	// Journal is the SQLite journal path. Relative paths resolve against
	// the directory of the environment file. Empty keeps everything in memory.
	Journal string `yaml:"journal,omitempty" toml:"journal" json:"journal,omitempty"`
}

// Load reads and validates the environment file at path.
func Load(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	var env *Environment
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		env, err = decodeYAML(data)
	case ".toml":
		env, err = decodeTOML(data)
	case ".cue":
		env, err = decodeCUE(path, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if env.Journal != "" && !filepath.IsAbs(env.Journal) {
		env.Journal = filepath.Join(filepath.Dir(path), env.Journal)
	}

	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// ValidationError lists every problem found in an environment.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid environment: " + strings.Join(e.Problems, "; ")
}

// Validate checks account ids and settings. Artifacts are checked when the
// environment is built, against the registry in use.
func (e *Environment) Validate() error {
	var problems []string

	if len(e.Accounts) == 0 {
		problems = append(problems, "at least one account is required")
	}
	seen := make(map[string]bool, len(e.Accounts))
	for i, acct := range e.Accounts {
		switch {
		case acct.ID == "":
			problems = append(problems, fmt.Sprintf("accounts[%d]: id is required", i))
		case seen[acct.ID]:
			problems = append(problems, fmt.Sprintf("accounts[%d]: duplicate id %q", i, acct.ID))
		}
		seen[acct.ID] = true
	}
	if e.MaxLegs < 0 {
		problems = append(problems, fmt.Sprintf("max_legs must not be negative, got %d", e.MaxLegs))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

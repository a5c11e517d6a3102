package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/courier/internal/config"
)

// Scenario defines an executable scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and prefixes its trace tokens.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Environment is an environment file, relative to the scenario file.
	Environment string `yaml:"environment,omitempty"`

	// Accounts are genesis accounts, added after those of Environment.
	Accounts []config.Account `yaml:"accounts,omitempty"`

	// MaxLegs overrides the per-trace leg quota.
	MaxLegs int `yaml:"max_legs,omitempty"`

	// Setup transactions run first and must succeed.
	Setup []TxStep `yaml:"setup,omitempty"`

	// Flow transactions are checked against their expect clauses.
	Flow []TxStep `yaml:"flow"`

	// Assertions validate the traces and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TxStep is one signed transaction.
type TxStep struct {
	Signer    string         `yaml:"signer"`
	Receiver  string         `yaml:"receiver"`
	Operation string         `yaml:"operation"`
	Args      map[string]any `yaml:"args,omitempty"`
	Deposit   uint64         `yaml:"deposit,omitempty"`
	Budget    uint64         `yaml:"budget"`

	// Expect is checked against the final outcome. Nil accepts any outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected final outcome of a transaction.
type ExpectClause struct {
	// Status is success, failed or aborted.
	Status string `yaml:"status"`

	// Value, when present, must equal the outcome value exactly.
	Value any `yaml:"value,omitempty"`

	// Error, when set, must be a substring of the failure reason.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates traces or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Operation string         `yaml:"operation,omitempty"`
	Receiver  string         `yaml:"receiver,omitempty"`
	Args      map[string]any `yaml:"args,omitempty"`
	Status    string         `yaml:"status,omitempty"`
	Count     int            `yaml:"count,omitempty"`

	// trace_order
	Operations []string `yaml:"operations,omitempty"`

	// account, mailbox
	Account  string     `yaml:"account,omitempty"`
	Exists   *bool      `yaml:"exists,omitempty"`
	Balance  *uint64    `yaml:"balance,omitempty"`
	Artifact string     `yaml:"artifact,omitempty"`
	Keys     []string   `yaml:"keys,omitempty"`
	Messages [][]string `yaml:"messages,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertAccount       = "account"
	AssertMailbox       = "mailbox"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly. The environment path is resolved against
// the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Environment != "" && !filepath.IsAbs(scenario.Environment) {
		scenario.Environment = filepath.Join(filepath.Dir(path), scenario.Environment)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks required fields.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Environment == "" && len(s.Accounts) == 0 {
		return fmt.Errorf("environment or accounts is required")
	}
	if s.Environment != "" {
		if _, err := os.Stat(s.Environment); os.IsNotExist(err) {
			return fmt.Errorf("environment file not found: %s", s.Environment)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil {
			switch step.Expect.Status {
			case "success", "failed", "aborted":
			default:
				return fmt.Errorf("flow[%d].expect: status must be success, failed or aborted, got %q", i, step.Expect.Status)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step TxStep) error {
	if step.Signer == "" || step.Receiver == "" || step.Operation == "" {
		return fmt.Errorf("signer, receiver and operation are required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Operation == "" {
			return fmt.Errorf("operation is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("operations list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("operation is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertAccount, AssertMailbox:
		if a.Account == "" {
			return fmt.Errorf("account is required for %s", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

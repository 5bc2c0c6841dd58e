package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relstore/internal/action"
)

// Scenario is a sequence of dispatched operations followed by assertions
// on the resulting store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models lists CUE model files, relative to the scenario file unless
	// absolute.
	Models []string `yaml:"models"`

	// Connection names the registry connection. Default: "default".
	Connection string `yaml:"connection,omitempty"`

	// KeyPrefix prefixes generated keys for records without a primary
	// key. Default: "key".
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// Steps are dispatched in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step dispatches one operation.
type Step struct {
	// Op is an action operation name: create, insert, update,
	// insertOrUpdate or delete.
	Op string `yaml:"op"`

	// Entity is the target model.
	Entity string `yaml:"entity"`

	// Data is the nested record data.
	Data any `yaml:"data,omitempty"`

	// Where selects records for update and delete: a primary key, or a
	// map of field values that must all match.
	Where any `yaml:"where,omitempty"`

	// Expect checks the step outcome. Without it, the step must succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// Error is the expected action error code, e.g. INVALID_PAYLOAD.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of records written or removed.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of record, absent, count, query.
	Type string `yaml:"type"`

	// Entity is the model the assertion reads.
	Entity string `yaml:"entity"`

	// Key is the table key (record, absent).
	Key string `yaml:"key,omitempty"`

	// Where filters records by field equality (count, query).
	Where map[string]any `yaml:"where,omitempty"`

	// With lists relation paths to eager load (query).
	With []string `yaml:"with,omitempty"`

	// OrderBy sorts query results by a field, ascending. Prefix the
	// field with "-" for descending order.
	OrderBy string `yaml:"order_by,omitempty"`

	// Expect holds expected field values (record). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Rows holds the expected query rows in order. Each row is a subset
	// match.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the expected number of records (count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecord = "record"
	AssertAbsent = "absent"
	AssertCount  = "count"
	AssertQuery  = "query"
)

// LoadScenario reads and parses a scenario YAML file. Model paths are
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving model paths relative to basePath.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, modelPath := range scenario.Models {
		if !filepath.IsAbs(modelPath) && basePath != "" {
			scenario.Models[i] = filepath.Join(basePath, modelPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating model paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, modelPath := range s.Models {
		if _, err := os.Stat(modelPath); os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", modelPath)
		}
	}

	for i, step := range s.Steps {
		if _, err := action.ParseOp(step.Op); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Entity == "" {
			return fmt.Errorf("steps[%d]: entity is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Entity == "" {
		return fmt.Errorf("assertions[%d]: entity is required", index)
	}

	switch a.Type {
	case AssertRecord:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertAbsent:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for absent", index)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertQuery:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for query (use [] for none)", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

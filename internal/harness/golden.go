package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// Snapshot captures the trace and final tables of a scenario run.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Tables       store.Tables
}

// Canonical renders s as canonical JSON: object keys in RFC 8785 order,
// no insignificant whitespace, tables keyed by entity then record key.
func (s *Snapshot) Canonical() ([]byte, error) {
	trace := make(value.Array, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = event.toValue()
	}
	return value.MarshalCanonical(value.Object{
		"scenario": value.String(s.ScenarioName),
		"trace":    trace,
		"tables":   s.Tables.ToValue(),
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Tables:       result.State,
	}
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

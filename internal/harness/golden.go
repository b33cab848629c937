package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/testutil"
)

// TraceSnapshot captures what a scenario did: each step's outcome, every
// observer notification, and the final recipients. It is serialized with
// ir.MarshalCanonical for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Steps        []StepOutcome         `json:"steps"`
	Trace        []testutil.TraceEvent `json:"trace"`
	Records      []RecordSnapshot      `json:"records"`
}

// RecordSnapshot is a recipient without its row id.
type RecordSnapshot struct {
	UniqueID    string `json:"unique_id"`
	ServiceID   string `json:"service_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// NewTraceSnapshot builds the snapshot of a scenario result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Trace:        result.Trace,
		Records:      make([]RecordSnapshot, len(result.State.Records)),
	}
	if snap.Steps == nil {
		snap.Steps = []StepOutcome{}
	}
	if snap.Trace == nil {
		snap.Trace = []testutil.TraceEvent{}
	}
	for i, r := range result.State.Records {
		snap.Records[i] = RecordSnapshot{
			UniqueID:    r.UniqueID,
			ServiceID:   stringOf(r.ServiceID),
			PhoneNumber: stringOf(r.PhoneNumber),
		}
	}
	return snap
}

// MarshalSnapshot returns the canonical JSON snapshot of a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(NewTraceSnapshot(scenarioName, result))
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
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

	data, err := MarshalSnapshot(scenarioName, result)
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

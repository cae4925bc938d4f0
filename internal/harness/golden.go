package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rewind/internal/ir"
)

// TraceSnapshot is the golden form of a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to plain maps and slices, which is
// what ir.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	r := s.Result
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		args := make([]any, len(ev.Args))
		copy(args, ev.Args)
		m := map[string]any{
			"phase":     ev.Phase,
			"index":     ev.Index,
			"operation": ev.Operation,
			"args":      args,
		}
		switch {
		case ev.Code != "":
			m["code"] = ev.Code
		case ev.Error != "":
			m["error"] = ev.Error
		default:
			m["return"] = ev.Return
		}
		trace[i] = m
	}

	recorded := make(map[string]any, len(r.Recorded))
	for op, n := range r.Recorded {
		recorded[op] = n
	}
	out := map[string]any{
		"scenario_name":  s.ScenarioName,
		"correlation_id": r.CorrelationID,
		"trace":          trace,
		"recorded":       recorded,
	}
	if r.Outcome != "" {
		out["outcome"] = r.Outcome
	}
	if len(r.Diffs) > 0 {
		diffs := make([]any, len(r.Diffs))
		for i, d := range r.Diffs {
			m := map[string]any{
				"kind": string(d.Kind),
				"path": d.Path.String(),
			}
			if d.Expected != nil {
				m["expected"] = d.Expected
			}
			if d.Actual != nil {
				m["actual"] = d.Actual
			}
			diffs[i] = m
		}
		out["diffs"] = diffs
	}
	if len(r.Unconsumed) > 0 {
		ops := make([]any, len(r.Unconsumed))
		for i, op := range r.Unconsumed {
			ops[i] = op
		}
		out["unconsumed"] = ops
	}
	return out
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario, fails the test if an assertion fails,
// and compares the trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares result against the golden file named scenarioName.
// Use it when the scenario has already been run.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{ScenarioName: scenarioName, Result: result}
	data, err := snapshot.MarshalCanonical()
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

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/engine"
)

// Scenario defines one record-then-replay run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CorrelationID is the id of the captured scope. If empty, defaults to
	// "test-correlation-default".
	CorrelationID string `yaml:"correlation_id,omitempty"`

	// Request is the request payload, stored as JSON with the recording.
	Request any `yaml:"request,omitempty"`

	// HashArguments stores argument digests instead of payloads.
	HashArguments bool `yaml:"hash_arguments,omitempty"`

	// Ignore maps a diff kind to path patterns suppressed when comparing
	// responses, as in the configuration file.
	Ignore map[string][]string `yaml:"ignore,omitempty"`

	Record Phase `yaml:"record"`
	Replay Phase `yaml:"replay"`

	// Assertions validate the result.
	Assertions []Assertion `yaml:"assertions"`
}

// Phase is the handler behavior of one phase. Mode is only read for the
// replay phase.
type Phase struct {
	// Mode is the replay mode name. Default: TEST.
	Mode string `yaml:"mode,omitempty"`

	// Concurrent runs the calls in parallel.
	Concurrent bool `yaml:"concurrent,omitempty"`

	// Calls are made by the handler in order (or all at once).
	Calls []Call `yaml:"calls"`

	// Response is the handler's response payload.
	Response any `yaml:"response,omitempty"`
}

// Call is one operation call made by the handler. Return and Error are the
// live result; under a replay mode the engine is expected to replace them
// with the recorded one.
type Call struct {
	Operation string `yaml:"operation"`
	Args      []any  `yaml:"args"`
	Return    any    `yaml:"return,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

// Assertion validates part of a Result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Label is the expected outcome label (outcome).
	Label string `yaml:"label,omitempty"`

	// Kind and Path locate a difference (diff). Kind is optional.
	Kind string `yaml:"kind,omitempty"`
	Path string `yaml:"path,omitempty"`

	// Count is the expected number (diff_count, recorded).
	Count int `yaml:"count,omitempty"`

	// Operations is the expected unconsumed set (unconsumed).
	Operations []string `yaml:"operations,omitempty"`

	// Operation names the operation (recorded).
	Operation string `yaml:"operation,omitempty"`

	// Index is the replay call number, 0-based (call_result).
	Index int `yaml:"index,omitempty"`

	// Return, Error and Code are the expected call result (call_result).
	Return any    `yaml:"return,omitempty"`
	Error  string `yaml:"error,omitempty"`
	Code   string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome    = "outcome"
	AssertDiff       = "diff"
	AssertDiffCount  = "diff_count"
	AssertUnconsumed = "unconsumed"
	AssertCallResult = "call_result"
	AssertRecorded   = "recorded"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// replayMode returns the replay phase's mode, TEST when unset.
func (s *Scenario) replayMode() engine.Mode {
	if s.Replay.Mode == "" {
		return engine.ModeTest
	}
	m, _ := engine.ParseMode(s.Replay.Mode)
	return m
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Replay.Mode != "" {
		m, err := engine.ParseMode(s.Replay.Mode)
		if err != nil {
			return fmt.Errorf("replay.mode: %w", err)
		}
		if !m.Replays() && m != engine.ModeTransform {
			return fmt.Errorf("replay.mode must be TEST, SERIALIZE or TRANSFORM, got %s", m)
		}
	}

	if _, err := diff.CompileIgnoreRules(s.Ignore); err != nil {
		return fmt.Errorf("ignore: %w", err)
	}

	for i, c := range s.Record.Calls {
		if err := validateCall(fmt.Sprintf("record.calls[%d]", i), c); err != nil {
			return err
		}
	}
	for i, c := range s.Replay.Calls {
		if err := validateCall(fmt.Sprintf("replay.calls[%d]", i), c); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Replay.Calls)); err != nil {
			return err
		}
	}
	return nil
}

func validateCall(where string, c Call) error {
	if c.Operation == "" {
		return fmt.Errorf("%s: operation is required", where)
	}
	if c.Return != nil && c.Error != "" {
		return fmt.Errorf("%s: return and error are mutually exclusive", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, replayCalls int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutcome:
		if !slices.Contains(engine.OutcomeLabels, engine.OutcomeLabel(a.Label)) {
			return fmt.Errorf("assertions[%d]: unknown outcome label %q", index, a.Label)
		}
	case AssertDiff:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for diff", index)
		}
		if a.Kind != "" {
			if _, err := diff.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertDiffCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diff_count", index)
		}
	case AssertUnconsumed:
	case AssertCallResult:
		if a.Index < 0 || a.Index >= replayCalls {
			return fmt.Errorf("assertions[%d]: index %d out of range for %d replay call(s)", index, a.Index, replayCalls)
		}
	case AssertRecorded:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for recorded", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for recorded", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

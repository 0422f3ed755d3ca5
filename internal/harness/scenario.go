package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// Scenario defines a conformance test scenario.
// A scenario feeds a fixed list of events to a monitor of one specification
// and asserts on the verdicts of the resulting cycles.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the path of the CUE specification file.
	// Relative paths are resolved against the scenario file's directory.
	Spec string `yaml:"spec,omitempty"`

	// Source is an inline CUE specification, used instead of Spec.
	Source string `yaml:"source,omitempty"`

	// TieBreak orders a deadline and an event at the same timestamp
	// ("periodic-first" or "event-first"). Default: periodic-first.
	TieBreak string `yaml:"tie_break,omitempty"`

	// Start is the monitor's time origin.
	Start Timestamp `yaml:"start,omitempty"`

	// Events are fed to the monitor in order.
	Events []EventStep `yaml:"events"`

	// Assertions validate the verdicts.
	// Supported types: verdict_contains, verdict_times, verdict_count,
	// final_value, runtime_error
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id. If empty, the scenario name is used
	// so that golden snapshots stay byte-identical across runs.
	RunID string `yaml:"run_id,omitempty"`
}

// Timestamp is a point in stream time written as seconds ("1.5") or a
// duration ("1500ms").
type Timestamp time.Duration

// UnmarshalYAML parses a scalar timestamp.
func (t *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timestamp must be a scalar", node.Line)
	}
	d, err := trace.ParseTimestamp(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = Timestamp(d)
	return nil
}

// Duration returns the timestamp as a duration since time zero.
func (t Timestamp) Duration() time.Duration { return time.Duration(t) }

// String renders the timestamp as decimal seconds.
func (t Timestamp) String() string { return trace.FormatTimestamp(time.Duration(t)) }

// EventStep is one event of the scenario.
type EventStep struct {
	// Time is the event's timestamp.
	Time Timestamp `yaml:"time"`

	// Inputs maps input names to their values. Absent inputs are not fresh.
	// Lists become tuples.
	Inputs map[string]any `yaml:"inputs"`
}

// Assertion validates the verdicts of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "verdict_contains": a cycle contains the described change
	// - "verdict_times": the stream changed exactly at these timestamps
	// - "verdict_count": the stream has exactly Count changes of Kind
	// - "final_value": the stream's (instance's) last value equals Value
	// - "runtime_error": the run failed with error code Code
	Type string `yaml:"type"`

	// Stream is the name of an input or output.
	Stream string `yaml:"stream,omitempty"`

	// Kind is the change kind: "value" (default), "spawn" or "close".
	Kind string `yaml:"kind,omitempty"`

	// At restricts verdict_contains to cycles at this timestamp.
	At *Timestamp `yaml:"at,omitempty"`

	// Params selects an instance of a parameterized output.
	Params []any `yaml:"params,omitempty"`

	// Value is the expected value. Absent means any value; null means None.
	Value yaml.Node `yaml:"value,omitempty"`

	// Times are the expected change timestamps (used by verdict_times).
	Times []Timestamp `yaml:"times,omitempty"`

	// Count is the expected number of changes (used by verdict_count).
	Count *int `yaml:"count,omitempty"`

	// Code is the expected runtime error code (used by runtime_error).
	Code string `yaml:"code,omitempty"`
}

// HasValue reports whether the assertion names an expected value.
func (a Assertion) HasValue() bool { return a.Value.Kind != 0 }

// Assertion type constants.
const (
	AssertVerdictContains = "verdict_contains"
	AssertVerdictTimes    = "verdict_times"
	AssertVerdictCount    = "verdict_count"
	AssertFinalValue      = "final_value"
	AssertRuntimeError    = "runtime_error"
)

// LoadScenario reads and parses a scenario YAML file. The spec path is
// resolved against the directory of the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the spec path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. A relative spec path is resolved
// against basePath when basePath is not empty.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec path relative to base path BEFORE validation
	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
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

	switch {
	case s.Spec == "" && s.Source == "":
		return fmt.Errorf("one of spec or source is required")
	case s.Spec != "" && s.Source != "":
		return fmt.Errorf("spec and source are mutually exclusive")
	case s.Spec != "":
		if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.Spec)
		}
	}

	if _, err := engine.ParseTieBreak(s.TieBreak); err != nil {
		return err
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
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

	switch a.Kind {
	case "", "value", "spawn", "close":
	default:
		return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertVerdictContains:
		if a.Stream == "" {
			return fmt.Errorf("assertions[%d]: stream is required for verdict_contains", index)
		}
	case AssertVerdictTimes:
		if a.Stream == "" {
			return fmt.Errorf("assertions[%d]: stream is required for verdict_times", index)
		}
	case AssertVerdictCount:
		if a.Stream == "" {
			return fmt.Errorf("assertions[%d]: stream is required for verdict_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for verdict_count", index)
		}
	case AssertFinalValue:
		if a.Stream == "" {
			return fmt.Errorf("assertions[%d]: stream is required for final_value", index)
		}
		if !a.HasValue() {
			return fmt.Errorf("assertions[%d]: value is required for final_value", index)
		}
	case AssertRuntimeError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for runtime_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

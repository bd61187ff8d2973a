package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of steps run against a fresh store, followed by
// assertions on the trace and the final state.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Namespace is the config namespace; defaults to engine.DefaultNamespace.
	Namespace string `yaml:"namespace,omitempty"`

	// UIDSeed seeds the uids given to new block types and groups. Defaults
	// to Name.
	UIDSeed string `yaml:"uid_seed,omitempty"`

	// Setup steps must succeed; a failing setup step aborts the run.
	Setup []ActionStep `yaml:"setup,omitempty"`

	Flow []FlowStep `yaml:"flow"`

	// Assertions supported: trace_contains, trace_order, trace_count,
	// final_state.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is a setup step.
type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep invokes an action and optionally checks its completion.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`
	Expect *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause is the expected completion of a flow step.
type ExpectClause struct {
	Case string `yaml:"case"`

	// Result is matched as a subset of the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action and Args are used by trace_contains and trace_count.
	Action string         `yaml:"action,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Table, Where and Expect are used by final_state.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown YAML keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
	}

	for i, step := range s.Flow {
		if _, ok := actions[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && !validCases[step.Expect.Case] {
			return fmt.Errorf("flow[%d].expect: unknown case %q", i, step.Expect.Case)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

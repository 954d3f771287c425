package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lumo/internal/ir"
)

// Scenario is a scripted editing session: nodes built from a catalog, a
// list of steps applied through the engine, and assertions on the final
// graph and the trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog directory, relative to the scenario file.
	Catalog string `yaml:"catalog"`

	// TokenPrefix prefixes the propagation tokens ("t" by default).
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// Nodes are created in order before the first step.
	Nodes []NodeDecl `yaml:"nodes"`

	// Steps are applied in order, one command each.
	Steps []Step `yaml:"steps"`

	// Assertions run after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// NodeDecl declares a node. ID is a scenario-local alias; slots are named
// "<alias>.<slot>".
type NodeDecl struct {
	ID     string `yaml:"id"`
	Type   string `yaml:"type"`
	Name   string `yaml:"name,omitempty"`
	Parent string `yaml:"parent,omitempty"`
	X      int64  `yaml:"x,omitempty"`
	Y      int64  `yaml:"y,omitempty"`
}

// Step is one command. Exactly one action field is set.
type Step struct {
	Connect       *LinkStep     `yaml:"connect,omitempty"`
	Reconnect     *LinkStep     `yaml:"reconnect,omitempty"`
	Disconnect    *LinkStep     `yaml:"disconnect,omitempty"`
	BreakAll      string        `yaml:"break_all,omitempty"`
	DisconnectAll string        `yaml:"disconnect_all,omitempty"`
	RemoveNode    string        `yaml:"remove_node,omitempty"`
	Set           *SetStep      `yaml:"set,omitempty"`
	Emit          *EmitStep     `yaml:"emit,omitempty"`
	EmitType      *EmitTypeStep `yaml:"emit_type,omitempty"`
	Back          *EmitStep     `yaml:"back,omitempty"`
	Broadcast     string        `yaml:"broadcast,omitempty"`
	Select        *SelectStep   `yaml:"select,omitempty"`

	// Expect checks the command's outcome. Without it the command must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// LinkStep names two slots, in either order.
type LinkStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SetStep stores a payload. A null or missing value clears the binding.
type SetStep struct {
	Slot  string `yaml:"slot"`
	Value any    `yaml:"value"`
	Emit  bool   `yaml:"emit,omitempty"`
}

// EmitStep sends an event from one slot.
type EmitStep struct {
	Slot  string `yaml:"slot"`
	Event string `yaml:"event"`
}

// EmitTypeStep sends an event from every output of one payload type.
type EmitTypeStep struct {
	Node  string `yaml:"node"`
	Type  string `yaml:"type"`
	Event string `yaml:"event"`
}

// SelectStep assigns an output to a button. An empty slot clears it.
type SelectStep struct {
	Button string `yaml:"button"`
	Slot   string `yaml:"slot,omitempty"`
}

// ExpectClause is the expected outcome of one step. Counts are checked
// only when given.
type ExpectClause struct {
	// Error is the expected error code (SAME_PLACE, NOT_LINKED, ...).
	Error string `yaml:"error,omitempty"`

	Deliveries *int `yaml:"deliveries,omitempty"`
	Pushes     *int `yaml:"pushes,omitempty"`
	Removed    *int `yaml:"removed,omitempty"`
	Cycles     *int `yaml:"cycles,omitempty"`
}

// Assertion checks the final graph or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// From and To name a slot pair (linked, not_linked).
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Slot names a slot (payload, selected, trace_contains).
	Slot string `yaml:"slot,omitempty"`

	// Node names a node (notified).
	Node string `yaml:"node,omitempty"`

	// Button is an output button (selected).
	Button string `yaml:"button,omitempty"`

	// Expect is a subset of the payload's fields (payload). Nil expects
	// the binding to be empty.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is an exact count (link_count, notified, trace_count).
	Count *int `yaml:"count,omitempty"`

	// Event is an event name (notified, trace_contains).
	Event string `yaml:"event,omitempty"`

	// Kind is a journal kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected order of journal kinds (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Error is an error code (trace_contains).
	Error string `yaml:"error,omitempty"`
}

// Assertion types.
const (
	AssertLinked        = "linked"
	AssertNotLinked     = "not_linked"
	AssertLinkCount     = "link_count"
	AssertPayload       = "payload"
	AssertNotified      = "notified"
	AssertSelected      = "selected"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertJournalReplay = "journal_replay"
)

// Action returns the step's action name, or "" if none is set.
func (s Step) Action() string {
	names := s.actions()
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func (s Step) actions() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(s.Connect != nil, "connect")
	add(s.Reconnect != nil, "reconnect")
	add(s.Disconnect != nil, "disconnect")
	add(s.BreakAll != "", "break_all")
	add(s.DisconnectAll != "", "disconnect_all")
	add(s.RemoveNode != "", "remove_node")
	add(s.Set != nil, "set")
	add(s.Emit != nil, "emit")
	add(s.EmitType != nil, "emit_type")
	add(s.Back != nil, "back")
	add(s.Broadcast != "", "broadcast")
	add(s.Select != nil, "select")
	return names
}

// LoadScenario reads and validates a scenario file. The catalog path is
// resolved against the file's directory. Unknown fields are rejected.
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

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks the parts that can be checked without a catalog.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if info, err := os.Stat(s.Catalog); err != nil || !info.IsDir() {
		return fmt.Errorf("catalog directory not found: %s", s.Catalog)
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("nodes list is required and must be non-empty")
	}

	aliases := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		switch {
		case n.ID == "":
			return fmt.Errorf("nodes[%d]: id is required", i)
		case strings.Contains(n.ID, "."):
			return fmt.Errorf("nodes[%d]: id %q must not contain '.'", i, n.ID)
		case aliases[n.ID]:
			return fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		case n.Type == "":
			return fmt.Errorf("nodes[%d]: type is required", i)
		case n.Parent != "" && !aliases[n.Parent]:
			return fmt.Errorf("nodes[%d]: parent %q must be declared before it", i, n.Parent)
		}
		aliases[n.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, s Step) error {
	names := s.actions()
	switch len(names) {
	case 0:
		return fmt.Errorf("steps[%d]: no action", i)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one action allowed, got %s", i, strings.Join(names, ", "))
	}

	var event string
	switch {
	case s.Connect != nil:
		return validateLink(i, s.Connect)
	case s.Reconnect != nil:
		return validateLink(i, s.Reconnect)
	case s.Disconnect != nil:
		return validateLink(i, s.Disconnect)
	case s.Set != nil:
		if s.Set.Slot == "" {
			return fmt.Errorf("steps[%d].set: slot is required", i)
		}
		return nil
	case s.Emit != nil:
		if s.Emit.Slot == "" {
			return fmt.Errorf("steps[%d].emit: slot is required", i)
		}
		event = s.Emit.Event
	case s.Back != nil:
		if s.Back.Slot == "" {
			return fmt.Errorf("steps[%d].back: slot is required", i)
		}
		event = s.Back.Event
	case s.EmitType != nil:
		if s.EmitType.Node == "" {
			return fmt.Errorf("steps[%d].emit_type: node is required", i)
		}
		if _, err := ir.ParsePayloadType(s.EmitType.Type); err != nil {
			return fmt.Errorf("steps[%d].emit_type: %w", i, err)
		}
		event = s.EmitType.Event
	case s.Select != nil:
		if _, err := ir.ParseOutputButton(s.Select.Button); err != nil {
			return fmt.Errorf("steps[%d].select: %w", i, err)
		}
		return nil
	case s.Broadcast != "":
		event = s.Broadcast
	default:
		return nil
	}
	if _, err := ir.ParseEventKind(event); err != nil {
		return fmt.Errorf("steps[%d]: %w", i, err)
	}
	return nil
}

func validateLink(i int, l *LinkStep) error {
	if l.From == "" || l.To == "" {
		return fmt.Errorf("steps[%d]: from and to are required", i)
	}
	return nil
}

// validateAssertion checks one assertion's required fields by type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLinked, AssertNotLinked:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: from and to are required for %s", index, a.Type)
		}
	case AssertLinkCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for link_count", index)
		}
	case AssertPayload:
		if a.Slot == "" {
			return fmt.Errorf("assertions[%d]: slot is required for payload", index)
		}
	case AssertNotified:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for notified", index)
		}
		if a.Event != "" {
			if _, err := ir.ParseEventKind(a.Event); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertSelected:
		if _, err := ir.ParseOutputButton(a.Button); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTraceContains:
		if _, err := ir.ParseJournalKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: trace_contains: %w", index, err)
		}
	case AssertTraceCount:
		if _, err := ir.ParseJournalKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: trace_count: %w", index, err)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
		for _, k := range a.Kinds {
			if _, err := ir.ParseJournalKind(k); err != nil {
				return fmt.Errorf("assertions[%d]: trace_order: %w", index, err)
			}
		}
	case AssertJournalReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

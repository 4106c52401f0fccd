package compat

import (
	"encoding/json"
	"strconv"
	"strings"

	"avrocompat/internal/schema"
)

// Category classifies an incompatibility
type Category string

const (
	// TypeMismatch: incompatible primitive or structural kinds at a location
	TypeMismatch Category = "TYPE_MISMATCH"
	// NameMismatch: named types at the same location have unrelated full names
	NameMismatch Category = "NAME_MISMATCH"
	// MissingDefaultValue: reader field has no writer counterpart and no default
	MissingDefaultValue Category = "MISSING_DEFAULT_VALUE"
	// MissingEnumSymbols: writer symbol the reader cannot represent
	MissingEnumSymbols Category = "MISSING_ENUM_SYMBOLS"
	// FixedSizeMismatch: fixed type byte lengths differ
	FixedSizeMismatch Category = "FIXED_SIZE_MISMATCH"
	// MissingUnionBranch: writer union branch the reader cannot decode
	MissingUnionBranch Category = "MISSING_UNION_BRANCH"
)

// SegmentKind tells how a path segment steps into a schema node
type SegmentKind int

const (
	FieldStep SegmentKind = iota
	ElementStep
	ValueStep
	BranchStep
	SymbolStep
)

var segmentKindNames = [...]string{
	FieldStep:   "field",
	ElementStep: "element",
	ValueStep:   "value",
	BranchStep:  "branch",
	SymbolStep:  "symbol",
}

func (k SegmentKind) String() string {
	if k < 0 || int(k) >= len(segmentKindNames) {
		return "unknown"
	}
	return segmentKindNames[k]
}

// Segment is one step of a Location
type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
}

func FieldSegment(name string) Segment { return Segment{Kind: FieldStep, Name: name} }

func ElementSegment() Segment { return Segment{Kind: ElementStep} }

func ValueSegment() Segment { return Segment{Kind: ValueStep} }

func BranchSegment(i int) Segment { return Segment{Kind: BranchStep, Index: i} }

func SymbolSegment(symbol string) Segment { return Segment{Kind: SymbolStep, Name: symbol} }

func (s Segment) String() string {
	switch s.Kind {
	case ElementStep:
		return "element"
	case ValueStep:
		return "value"
	case BranchStep:
		return strconv.Itoa(s.Index)
	default:
		return s.Name
	}
}

// Location is a path from the roots of both trees to a divergence
type Location []Segment

// With returns a new location extended by seg; the receiver is left untouched
func (l Location) With(seg Segment) Location {
	out := make(Location, len(l)+1)
	copy(out, l)
	out[len(l)] = seg
	return out
}

// String joins the segments with slashes; the root is "/"
func (l Location) String() string {
	if len(l) == 0 {
		return "/"
	}
	parts := make([]string, len(l))
	for i, s := range l {
		parts[i] = s.String()
	}
	return "/" + strings.Join(parts, "/")
}

// Step is the serializable shape of a Segment. The kind keeps a field named "element"
// apart from an array step.
type Step struct {
	Kind  string `json:"kind" yaml:"kind"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Index *int   `json:"index,omitempty" yaml:"index,omitempty"`
}

// Steps renders each segment with its kind
func (l Location) Steps() []Step {
	steps := make([]Step, len(l))
	for i, s := range l {
		steps[i] = Step{Kind: s.Kind.String(), Name: s.Name}
		if s.Kind == BranchStep {
			index := s.Index
			steps[i].Index = &index
		}
	}
	return steps
}

// Finding is one located incompatibility. Writer or Reader is nil when that side has no
// node at the location.
type Finding struct {
	Category Category
	Location Location
	Writer   *schema.Node
	Reader   *schema.Node
	Message  string
}

// Report is the serializable shape of a Finding
type Report struct {
	Category Category `json:"category" yaml:"category"`
	Location string   `json:"location" yaml:"location"`
	Path     []Step   `json:"path" yaml:"path"`
	Writer   *string  `json:"writer" yaml:"writer"`
	Reader   *string  `json:"reader" yaml:"reader"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Report renders the finding with both fragments in Avro JSON form
func (f Finding) Report() Report {
	return Report{
		Category: f.Category,
		Location: f.Location.String(),
		Path:     f.Location.Steps(),
		Writer:   fragment(f.Writer),
		Reader:   fragment(f.Reader),
		Message:  f.Message,
	}
}

func (f Finding) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Report())
}

func (f Finding) MarshalYAML() (interface{}, error) {
	return f.Report(), nil
}

func (f Finding) String() string {
	return string(f.Category) + " at " + f.Location.String() + ": " + f.Message
}

func fragment(n *schema.Node) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}

package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema is a validated tree. Named types are interned by full name so references resolve
// to a single definition node, and node identity can stand in for type identity.
type Schema struct {
	root  *Node
	named map[string]*Node
}

// NewSchema validates the tree under root and interns its named types
func NewSchema(root *Node) (*Schema, error) {
	if root == nil {
		return nil, invalid("schema root is missing")
	}
	s := &Schema{root: root, named: make(map[string]*Node)}
	v := validator{schema: s, seen: make(map[*Node]bool)}
	if err := v.walk(root); err != nil {
		return nil, err
	}
	for _, ref := range v.refs {
		if _, ok := s.named[ref.name]; !ok {
			return nil, invalid(fmt.Sprintf("undefined named type %q", ref.name))
		}
	}
	return s, nil
}

// MustNewSchema is like NewSchema but panics on an invalid tree
func MustNewSchema(root *Node) *Schema {
	s, err := NewSchema(root)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Root() *Node { return s.root }

// Lookup finds the definition of a named type by full name
func (s *Schema) Lookup(fullName string) (*Node, bool) {
	n, ok := s.named[fullName]
	return n, ok
}

// Resolve dereferences a reference node to its definition; other nodes are returned as is
func (s *Schema) Resolve(n *Node) *Node {
	if n == nil || n.kind != Ref {
		return n
	}
	if def, ok := s.named[n.name]; ok {
		return def
	}
	return n
}

// NamedTypes lists the full names defined in the tree, sorted
func (s *Schema) NamedTypes() []string {
	names := make([]string, 0, len(s.named))
	for name := range s.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalid(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}

type validator struct {
	schema *Schema
	seen   map[*Node]bool
	refs   []*Node
}

func (v *validator) walk(n *Node) error {
	if n == nil {
		return invalid("schema node is missing")
	}
	if v.seen[n] {
		return nil
	}
	v.seen[n] = true

	switch n.kind {
	case Null, Boolean, Int, Long, Float, Double, Bytes, String:
		return nil
	case Ref:
		if err := validFullName(n.name); err != nil {
			return err
		}
		v.refs = append(v.refs, n)
		return nil
	case Record:
		if err := v.define(n); err != nil {
			return err
		}
		return v.walkRecord(n)
	case Enum:
		if err := v.define(n); err != nil {
			return err
		}
		return validEnum(n)
	case Fixed:
		if err := v.define(n); err != nil {
			return err
		}
		if n.size < 0 {
			return invalid(fmt.Sprintf("fixed %s has negative size %d", n.name, n.size))
		}
		return nil
	case Array:
		if n.items == nil {
			return invalid("array items type is missing")
		}
		return v.walk(n.items)
	case Map:
		if n.items == nil {
			return invalid("map values type is missing")
		}
		return v.walk(n.items)
	case Union:
		return v.walkUnion(n)
	default:
		return invalid(fmt.Sprintf("unknown schema kind %d", int(n.kind)))
	}
}

func (v *validator) define(n *Node) error {
	if err := validFullName(n.name); err != nil {
		return err
	}
	for _, alias := range n.aliases {
		if err := validFullName(alias); err != nil {
			return err
		}
	}
	if existing, ok := v.schema.named[n.name]; ok && existing != n {
		return invalid(fmt.Sprintf("named type %q is defined more than once", n.name))
	}
	v.schema.named[n.name] = n
	return nil
}

func (v *validator) walkRecord(n *Node) error {
	names := make(map[string]bool, len(n.fields))
	for _, f := range n.fields {
		if f == nil {
			return invalid(fmt.Sprintf("record %s has a missing field", n.name))
		}
		if !namePattern.MatchString(f.name) {
			return invalid(fmt.Sprintf("record %s has invalid field name %q", n.name, f.name))
		}
		if names[f.name] {
			return invalid(fmt.Sprintf("record %s has duplicate field name %q", n.name, f.name))
		}
		names[f.name] = true
	}
	for _, f := range n.fields {
		for _, alias := range f.aliases {
			if !namePattern.MatchString(alias) {
				return invalid(fmt.Sprintf("field %s.%s has invalid alias %q", n.name, f.name, alias))
			}
			if names[alias] {
				return invalid(fmt.Sprintf("record %s: alias %q of field %q collides with another field", n.name, alias, f.name))
			}
			names[alias] = true
		}
	}
	for _, f := range n.fields {
		if err := v.walk(f.typ); err != nil {
			return err
		}
	}
	return nil
}

func validEnum(n *Node) error {
	symbols := make(map[string]bool, len(n.symbols))
	for _, s := range n.symbols {
		if !namePattern.MatchString(s) {
			return invalid(fmt.Sprintf("enum %s has invalid symbol %q", n.name, s))
		}
		if symbols[s] {
			return invalid(fmt.Sprintf("enum %s has duplicate symbol %q", n.name, s))
		}
		symbols[s] = true
	}
	if n.enumDefault != "" && !symbols[n.enumDefault] {
		return invalid(fmt.Sprintf("enum %s default %q is not a symbol", n.name, n.enumDefault))
	}
	return nil
}

func (v *validator) walkUnion(n *Node) error {
	keys := make(map[string]bool, len(n.branches))
	for _, b := range n.branches {
		if b == nil {
			return invalid("union has a missing branch")
		}
		if b.kind == Union {
			return invalid("union may not immediately contain another union")
		}
		key := b.kind.String()
		if b.kind.IsNamed() || b.kind == Ref {
			key = b.name
		}
		if keys[key] {
			return invalid(fmt.Sprintf("union contains duplicate branch %s", key))
		}
		keys[key] = true
		if err := v.walk(b); err != nil {
			return err
		}
	}
	return nil
}

func validFullName(fullName string) error {
	if fullName == "" {
		return invalid("named type has an empty name")
	}
	for _, part := range strings.Split(fullName, ".") {
		if !namePattern.MatchString(part) {
			return invalid(fmt.Sprintf("invalid full name %q", fullName))
		}
	}
	return nil
}

package schema

import (
	"encoding/json"
	"strconv"
	"strings"
)

// String renders the node as Avro schema JSON. Each named type is written in full the first
// time it appears and by full name afterwards.
func (n *Node) String() string {
	if n == nil {
		return "null"
	}
	r := renderer{defined: make(map[string]bool)}
	r.node(n)
	return r.b.String()
}

// String renders the whole tree as Avro schema JSON
func (s *Schema) String() string {
	return s.root.String()
}

type renderer struct {
	b       strings.Builder
	defined map[string]bool
}

func (r *renderer) node(n *Node) {
	switch n.kind {
	case Null, Boolean, Int, Long, Float, Double, Bytes, String:
		if n.logical == nil {
			r.str(n.kind.String())
			return
		}
		r.b.WriteString(`{"type":`)
		r.str(n.kind.String())
		r.logical(n.logical)
		r.b.WriteByte('}')
	case Ref:
		r.str(n.name)
	case Record:
		if r.named(n) {
			return
		}
		r.b.WriteString(`,"fields":[`)
		for i, f := range n.fields {
			if i > 0 {
				r.b.WriteByte(',')
			}
			r.field(f)
		}
		r.b.WriteString("]}")
	case Enum:
		if r.named(n) {
			return
		}
		r.b.WriteString(`,"symbols":`)
		r.list(n.symbols)
		if n.enumDefault != "" {
			r.b.WriteString(`,"default":`)
			r.str(n.enumDefault)
		}
		r.b.WriteByte('}')
	case Fixed:
		if r.named(n) {
			return
		}
		r.b.WriteString(`,"size":`)
		r.b.WriteString(strconv.Itoa(n.size))
		if n.logical != nil {
			r.logical(n.logical)
		}
		r.b.WriteByte('}')
	case Array:
		r.b.WriteString(`{"type":"array","items":`)
		r.node(n.items)
		r.b.WriteByte('}')
	case Map:
		r.b.WriteString(`{"type":"map","values":`)
		r.node(n.items)
		r.b.WriteByte('}')
	case Union:
		r.b.WriteByte('[')
		for i, b := range n.branches {
			if i > 0 {
				r.b.WriteByte(',')
			}
			r.node(b)
		}
		r.b.WriteByte(']')
	}
}

// named writes the opening of a named type definition, leaving the object open for the
// kind specific members. It returns true when the type was already written and only its
// name was emitted.
func (r *renderer) named(n *Node) bool {
	if r.defined[n.name] {
		r.str(n.name)
		return true
	}
	r.defined[n.name] = true
	r.b.WriteString(`{"type":`)
	r.str(n.kind.String())
	r.b.WriteString(`,"name":`)
	r.str(n.name)
	if len(n.aliases) > 0 {
		r.b.WriteString(`,"aliases":`)
		r.list(n.aliases)
	}
	return false
}

func (r *renderer) field(f *Field) {
	r.b.WriteString(`{"name":`)
	r.str(f.name)
	if len(f.aliases) > 0 {
		r.b.WriteString(`,"aliases":`)
		r.list(f.aliases)
	}
	r.b.WriteString(`,"type":`)
	r.node(f.typ)
	if f.hasDefault {
		r.b.WriteString(`,"default":`)
		data, err := json.Marshal(f.def)
		if err != nil {
			data = []byte("null")
		}
		r.b.Write(data)
	}
	r.b.WriteByte('}')
}

func (r *renderer) logical(l *Logical) {
	r.b.WriteString(`,"logicalType":`)
	r.str(l.Type)
	if l.Type != "decimal" {
		return
	}
	r.b.WriteString(`,"precision":`)
	r.b.WriteString(strconv.Itoa(l.Precision))
	if l.Scale > 0 {
		r.b.WriteString(`,"scale":`)
		r.b.WriteString(strconv.Itoa(l.Scale))
	}
}

func (r *renderer) list(items []string) {
	r.b.WriteByte('[')
	for i, s := range items {
		if i > 0 {
			r.b.WriteByte(',')
		}
		r.str(s)
	}
	r.b.WriteByte(']')
}

func (r *renderer) str(s string) {
	data, _ := json.Marshal(s)
	r.b.Write(data)
}

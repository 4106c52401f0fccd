package schema

// Kind identifies the variant of a schema node
type Kind int

const (
	Null Kind = iota
	Boolean
	Int
	Long
	Float
	Double
	Bytes
	String
	Record
	Enum
	Array
	Map
	Union
	Fixed
	// Ref points at a named type defined elsewhere in the same tree
	Ref
)

var kindNames = [...]string{
	Null:    "null",
	Boolean: "boolean",
	Int:     "int",
	Long:    "long",
	Float:   "float",
	Double:  "double",
	Bytes:   "bytes",
	String:  "string",
	Record:  "record",
	Enum:    "enum",
	Array:   "array",
	Map:     "map",
	Union:   "union",
	Fixed:   "fixed",
	Ref:     "ref",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsPrimitive reports whether the kind has no children and no name
func (k Kind) IsPrimitive() bool {
	return k >= Null && k <= String
}

// IsNamed reports whether the kind is a record, enum or fixed
func (k Kind) IsNamed() bool {
	return k == Record || k == Enum || k == Fixed
}

// Node is one vertex of a schema tree. Nodes are immutable once built.
type Node struct {
	kind Kind

	// named types and references
	name    string
	aliases []string

	fields      []*Field
	symbols     []string
	enumDefault string

	// array items or map values
	items    *Node
	branches []*Node
	size     int

	logical *Logical
}

// Logical is a logical type annotation. It is kept for display only; resolution looks at
// the underlying kind.
type Logical struct {
	Type      string
	Precision int
	Scale     int
}

// Option configures a named node
type Option func(*Node)

// WithAliases attaches alternate full names to a named type
func WithAliases(aliases ...string) Option {
	return func(n *Node) {
		n.aliases = append(n.aliases, aliases...)
	}
}

// WithEnumDefault sets the symbol used for writer symbols the reader does not know
func WithEnumDefault(symbol string) Option {
	return func(n *Node) {
		n.enumDefault = symbol
	}
}

var primitives = func() map[Kind]*Node {
	m := make(map[Kind]*Node)
	for k := Null; k <= String; k++ {
		m[k] = &Node{kind: k}
	}
	return m
}()

// Primitive returns the shared node for a primitive kind. It panics for any other kind.
func Primitive(k Kind) *Node {
	n, ok := primitives[k]
	if !ok {
		panic("schema: not a primitive kind: " + k.String())
	}
	return n
}

// Annotated returns a new primitive node of kind k carrying a logical type. It panics for
// a kind that is not primitive.
func Annotated(k Kind, logical Logical) *Node {
	Primitive(k)
	return &Node{kind: k, logical: &logical}
}

// WithLogical annotates a fixed type with a logical type
func WithLogical(logical Logical) Option {
	return func(n *Node) {
		n.logical = &logical
	}
}

// NewRecord builds a record type
func NewRecord(fullName string, fields []*Field, opts ...Option) *Node {
	n := &Node{kind: Record, name: fullName, fields: fields}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewEnum builds an enum type
func NewEnum(fullName string, symbols []string, opts ...Option) *Node {
	n := &Node{kind: Enum, name: fullName, symbols: symbols}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewFixed builds a fixed type of size bytes
func NewFixed(fullName string, size int, opts ...Option) *Node {
	n := &Node{kind: Fixed, name: fullName, size: size}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewArray builds an array of items
func NewArray(items *Node) *Node {
	return &Node{kind: Array, items: items}
}

// NewMap builds a map with string keys and the given values
func NewMap(values *Node) *Node {
	return &Node{kind: Map, items: values}
}

// NewUnion builds a union of branches in declaration order
func NewUnion(branches ...*Node) *Node {
	return &Node{kind: Union, branches: branches}
}

// Reference refers to the named type fullName defined in the same tree
func Reference(fullName string) *Node {
	return &Node{kind: Ref, name: fullName}
}

func (n *Node) Kind() Kind { return n.kind }

// FullName is the namespace-qualified name of a named type or reference, empty otherwise
func (n *Node) FullName() string { return n.name }

func (n *Node) Aliases() []string { return n.aliases }

func (n *Node) Fields() []*Field { return n.fields }

func (n *Node) Symbols() []string { return n.symbols }

// EnumDefault returns the reader default symbol, if one is declared
func (n *Node) EnumDefault() (string, bool) {
	return n.enumDefault, n.enumDefault != ""
}

// Items is the element type of an array
func (n *Node) Items() *Node {
	if n.kind != Array {
		return nil
	}
	return n.items
}

// Values is the value type of a map
func (n *Node) Values() *Node {
	if n.kind != Map {
		return nil
	}
	return n.items
}

func (n *Node) Branches() []*Node { return n.branches }

func (n *Node) Size() int { return n.size }

// Logical returns the logical type annotation, if any
func (n *Node) Logical() (Logical, bool) {
	if n.logical == nil {
		return Logical{}, false
	}
	return *n.logical, true
}

// HasSymbol reports whether the enum declares symbol
func (n *Node) HasSymbol(symbol string) bool {
	for _, s := range n.symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// HasAlias reports whether fullName is one of the node's aliases
func (n *Node) HasAlias(fullName string) bool {
	for _, a := range n.aliases {
		if a == fullName {
			return true
		}
	}
	return false
}

// Field looks up a record field by its declared name
func (n *Node) Field(name string) (*Field, bool) {
	for _, f := range n.fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// SameName reports whether two named types denote the same type: their full names are
// equal or either side lists the other's full name as an alias.
func SameName(a, b *Node) bool {
	if a.name == b.name {
		return true
	}
	return a.HasAlias(b.name) || b.HasAlias(a.name)
}

// Field is a record member
type Field struct {
	name       string
	aliases    []string
	typ        *Node
	def        any
	hasDefault bool
}

// FieldOption configures a record field
type FieldOption func(*Field)

// WithDefault declares the value a reader uses when the writer lacks the field
func WithDefault(v any) FieldOption {
	return func(f *Field) {
		f.def = v
		f.hasDefault = true
	}
}

// WithFieldAliases attaches former names to a field
func WithFieldAliases(aliases ...string) FieldOption {
	return func(f *Field) {
		f.aliases = append(f.aliases, aliases...)
	}
}

// NewField builds a record field
func NewField(name string, typ *Node, opts ...FieldOption) *Field {
	f := &Field{name: name, typ: typ}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Field) Name() string { return f.name }

func (f *Field) Aliases() []string { return f.aliases }

func (f *Field) Type() *Node { return f.typ }

func (f *Field) HasDefault() bool { return f.hasDefault }

// Default returns the declared default and whether one exists. A nil value with ok set
// is a JSON null default.
func (f *Field) Default() (any, bool) { return f.def, f.hasDefault }

// Matches reports whether two fields denote the same member, by name or by either side's aliases
func (f *Field) Matches(other *Field) bool {
	if f.name == other.name {
		return true
	}
	for _, a := range f.aliases {
		if a == other.name {
			return true
		}
	}
	for _, a := range other.aliases {
		if a == f.name {
			return true
		}
	}
	return false
}

package avro

import (
	"fmt"

	"avrocompat/internal/schema"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/hamba/avro/v2"
)

// Format parses Avro schema JSON into the schema model
type Format struct{}

// New creates a new Avro format implementation
func New() *Format {
	return &Format{}
}

// Validate reports whether schemaStr is a well-formed Avro schema
func (f *Format) Validate(schemaStr string) error {
	_, err := f.Parse(schemaStr)
	return err
}

// Parse parses schemaStr and converts it into a validated schema tree
func (f *Format) Parse(schemaStr string) (*schema.Schema, error) {
	// A private cache keeps named types from leaking between unrelated schemas.
	parsed, err := avro.ParseWithCache(schemaStr, "", &avro.SchemaCache{})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("parse schema").
			WithCause(err)
	}

	c := converter{defined: make(map[string]bool)}
	root, err := c.convert(parsed)
	if err != nil {
		return nil, err
	}
	return schema.NewSchema(root)
}

// FromAvro converts an already parsed hamba schema
func (f *Format) FromAvro(s avro.Schema) (*schema.Schema, error) {
	c := converter{defined: make(map[string]bool)}
	root, err := c.convert(s)
	if err != nil {
		return nil, err
	}
	return schema.NewSchema(root)
}

type converter struct {
	defined map[string]bool
}

func (c *converter) convert(s avro.Schema) (*schema.Node, error) {
	switch t := s.(type) {
	case *avro.RefSchema:
		return schema.Reference(t.Schema().FullName()), nil
	case *avro.NullSchema:
		return schema.Primitive(schema.Null), nil
	case *avro.PrimitiveSchema:
		n, err := primitive(t.Type())
		if err != nil || t.Logical() == nil {
			return n, err
		}
		return schema.Annotated(n.Kind(), logical(t.Logical())), nil
	case *avro.RecordSchema:
		if c.defined[t.FullName()] {
			return schema.Reference(t.FullName()), nil
		}
		c.defined[t.FullName()] = true

		fields := make([]*schema.Field, 0, len(t.Fields()))
		for _, f := range t.Fields() {
			typ, err := c.convert(f.Type())
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", t.FullName(), f.Name(), err)
			}
			var opts []schema.FieldOption
			if f.HasDefault() {
				opts = append(opts, schema.WithDefault(f.Default()))
			}
			if len(f.Aliases()) > 0 {
				opts = append(opts, schema.WithFieldAliases(f.Aliases()...))
			}
			fields = append(fields, schema.NewField(f.Name(), typ, opts...))
		}
		return schema.NewRecord(t.FullName(), fields, schema.WithAliases(t.Aliases()...)), nil
	case *avro.EnumSchema:
		if c.defined[t.FullName()] {
			return schema.Reference(t.FullName()), nil
		}
		c.defined[t.FullName()] = true

		opts := []schema.Option{schema.WithAliases(t.Aliases()...)}
		if def := t.Default(); def != "" {
			opts = append(opts, schema.WithEnumDefault(def))
		}
		return schema.NewEnum(t.FullName(), t.Symbols(), opts...), nil
	case *avro.FixedSchema:
		if c.defined[t.FullName()] {
			return schema.Reference(t.FullName()), nil
		}
		c.defined[t.FullName()] = true
		opts := []schema.Option{schema.WithAliases(t.Aliases()...)}
		if l := t.Logical(); l != nil {
			opts = append(opts, schema.WithLogical(logical(l)))
		}
		return schema.NewFixed(t.FullName(), t.Size(), opts...), nil
	case *avro.ArraySchema:
		items, err := c.convert(t.Items())
		if err != nil {
			return nil, err
		}
		return schema.NewArray(items), nil
	case *avro.MapSchema:
		values, err := c.convert(t.Values())
		if err != nil {
			return nil, err
		}
		return schema.NewMap(values), nil
	case *avro.UnionSchema:
		branches := make([]*schema.Node, 0, len(t.Types()))
		for _, b := range t.Types() {
			n, err := c.convert(b)
			if err != nil {
				return nil, err
			}
			branches = append(branches, n)
		}
		return schema.NewUnion(branches...), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported schema type: %s", s.Type()))
	}
}

func logical(l avro.LogicalSchema) schema.Logical {
	out := schema.Logical{Type: string(l.Type())}
	if d, ok := l.(*avro.DecimalLogicalSchema); ok {
		out.Precision = d.Precision()
		out.Scale = d.Scale()
	}
	return out
}

func primitive(t avro.Type) (*schema.Node, error) {
	switch t {
	case avro.Null:
		return schema.Primitive(schema.Null), nil
	case avro.Boolean:
		return schema.Primitive(schema.Boolean), nil
	case avro.Int:
		return schema.Primitive(schema.Int), nil
	case avro.Long:
		return schema.Primitive(schema.Long), nil
	case avro.Float:
		return schema.Primitive(schema.Float), nil
	case avro.Double:
		return schema.Primitive(schema.Double), nil
	case avro.Bytes:
		return schema.Primitive(schema.Bytes), nil
	case avro.String:
		return schema.Primitive(schema.String), nil
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unsupported primitive type: %s", t))
}

package compat

import (
	"context"
	"encoding/json"
	"testing"

	"avrocompat/internal/schema"
	avroformat "avrocompat/internal/schema/formats/avro"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, text string) *schema.Schema {
	t.Helper()
	s, err := avroformat.New().Parse(text)
	require.NoError(t, err)
	return s
}

const (
	userV1 = `{"type": "record", "name": "User", "namespace": "com.example", "fields": [
		{"name": "id", "type": "int"},
		{"name": "name", "type": "string"}
	]}`
	userV2 = `{"type": "record", "name": "User", "namespace": "com.example", "fields": [
		{"name": "id", "type": "long"},
		{"name": "name", "type": "string"},
		{"name": "email", "type": ["null", "string"], "default": null}
	]}`
	userV3 = `{"type": "record", "name": "User", "namespace": "com.example", "fields": [
		{"name": "id", "type": "long"},
		{"name": "name", "type": "string"},
		{"name": "country", "type": "string"}
	]}`
)

func TestCanBeReadBy(t *testing.T) {
	tests := []struct {
		name       string
		writer     string
		reader     string
		wantCompat bool
		wantCats   []Category
	}{
		{
			name:       "Int Read As Long",
			writer:     `"int"`,
			reader:     `"long"`,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Long Read As Int",
			writer:     `"long"`,
			reader:     `"int"`,
			wantCompat: false,
			wantCats:   []Category{TypeMismatch},
		},
		{
			name:       "Added Optional Field",
			writer:     userV1,
			reader:     userV2,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Added Required Field",
			writer:     userV2,
			reader:     userV3,
			wantCompat: false,
			wantCats:   []Category{MissingDefaultValue},
		},
		{
			name:       "Enum Missing Symbol",
			writer:     `{"type": "enum", "name": "E", "symbols": ["A", "B", "C"]}`,
			reader:     `{"type": "enum", "name": "E", "symbols": ["A", "B"]}`,
			wantCompat: false,
			wantCats:   []Category{MissingEnumSymbols},
		},
		{
			name:       "Enum Reader Default",
			writer:     `{"type": "enum", "name": "E", "symbols": ["A", "B", "C"]}`,
			reader:     `{"type": "enum", "name": "E", "symbols": ["A", "B"], "default": "A"}`,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Fixed Size",
			writer:     `{"type": "fixed", "name": "F", "size": 8}`,
			reader:     `{"type": "fixed", "name": "F", "size": 16}`,
			wantCompat: false,
			wantCats:   []Category{FixedSizeMismatch},
		},
		{
			name:       "Record Renamed With Alias",
			writer:     `{"type": "record", "name": "com.example.Person", "fields": [{"name": "id", "type": "int"}]}`,
			reader:     `{"type": "record", "name": "com.example.User", "aliases": ["com.example.Person"], "fields": [{"name": "id", "type": "int"}]}`,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Recursive List",
			writer:     `{"type": "record", "name": "Node", "fields": [{"name": "v", "type": "int"}, {"name": "next", "type": ["null", "Node"], "default": null}]}`,
			reader:     `{"type": "record", "name": "Node", "fields": [{"name": "v", "type": "double"}, {"name": "next", "type": ["null", "Node"], "default": null}]}`,
			wantCompat: true,
			wantCats:   []Category{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanBeReadBy(parse(t, tt.writer), parse(t, tt.reader))
			assert.Equal(t, tt.wantCompat, result.Compatible)
			assert.Equal(t, tt.wantCats, categories(result.Findings))
			assert.Equal(t, tt.wantCompat, IsReadable(parse(t, tt.writer), parse(t, tt.reader)))
		})
	}
}

func TestCanBeReadBy_AgreesWithHamba(t *testing.T) {
	pairs := []struct {
		name           string
		writer, reader string
	}{
		{"Promotion", `"int"`, `"long"`},
		{"Narrowing", `"long"`, `"int"`},
		{"Added Optional Field", userV1, userV2},
		{"Added Required Field", userV2, userV3},
		{"Dropped Field", userV2, userV1},
		{"Missing Enum Symbol", `{"type": "enum", "name": "E", "symbols": ["A", "B", "C"]}`, `{"type": "enum", "name": "E", "symbols": ["A", "B"]}`},
		{"Array Items", `{"type": "array", "items": "int"}`, `{"type": "array", "items": "string"}`},
	}

	checker := avro.NewSchemaCompatibility()
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			writer, err := avro.ParseWithCache(p.writer, "", &avro.SchemaCache{})
			require.NoError(t, err)
			reader, err := avro.ParseWithCache(p.reader, "", &avro.SchemaCache{})
			require.NoError(t, err)

			want := checker.Compatible(reader, writer) == nil
			assert.Equal(t, want, CanBeReadBy(parse(t, p.writer), parse(t, p.reader)).Compatible)
		})
	}
}

func TestMutualReadWith(t *testing.T) {
	schemas := []string{
		`"int"`,
		`"long"`,
		`"string"`,
		`"bytes"`,
		userV1,
		userV2,
		userV3,
		`["null", "int"]`,
		`["null", "long"]`,
	}

	for _, a := range schemas {
		for _, b := range schemas {
			sa, sb := parse(t, a), parse(t, b)
			want := CanBeReadBy(sa, sb).Compatible && CanBeReadBy(sb, sa).Compatible
			assert.Equal(t, want, MutualReadWith(sa, sb).Compatible, "a=%s b=%s", a, b)
			assert.Equal(t, want, MutualReadWith(sa, sb, ShortCircuit()).Compatible, "a=%s b=%s", a, b)
		}
	}
}

func TestMutualReadWith_FindingOrder(t *testing.T) {
	a := parse(t, userV1)
	b := parse(t, userV3)

	result := MutualReadWith(a, b)
	assert.False(t, result.Compatible)
	// userV1 -> userV3: country has no default. userV3 -> userV1: id long narrows to int.
	require.Len(t, result.Findings, 2)

	assert.Equal(t, MissingDefaultValue, result.Findings[0].Category)
	assert.Equal(t, "/country", result.Findings[0].Location.String())

	assert.Equal(t, TypeMismatch, result.Findings[1].Category)
	assert.Equal(t, "/id", result.Findings[1].Location.String())
	assert.Equal(t, schema.Long, result.Findings[1].Writer.Kind())
	assert.Equal(t, schema.Int, result.Findings[1].Reader.Kind())

	short := MutualReadWith(a, b, ShortCircuit())
	assert.False(t, short.Compatible)
	assert.Len(t, short.Findings, 1)
}

func TestMutualReadWith_StringBytes(t *testing.T) {
	result := MutualReadWith(parse(t, `"string"`), parse(t, `"bytes"`))
	assert.True(t, result.Compatible)
	assert.Empty(t, result.Findings)
}

func TestResult_JSON(t *testing.T) {
	result := CanBeReadBy(parse(t, userV2), parse(t, userV3))
	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded struct {
		Compatible bool `json:"compatible"`
		Findings   []struct {
			Category string   `json:"category"`
			Location string   `json:"location"`
			Path     []Step   `json:"path"`
			Writer   *string  `json:"writer"`
			Reader   *string  `json:"reader"`
			Message  string   `json:"message"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.False(t, decoded.Compatible)
	require.Len(t, decoded.Findings, 1)
	f := decoded.Findings[0]
	assert.Equal(t, "MISSING_DEFAULT_VALUE", f.Category)
	assert.Equal(t, "/country", f.Location)
	assert.Equal(t, []Step{{Kind: "field", Name: "country"}}, f.Path)
	assert.Nil(t, f.Writer)
	require.NotNil(t, f.Reader)
	assert.Equal(t, `"string"`, *f.Reader)
	assert.NotEmpty(t, f.Message)
}

func TestResult_JSONEmptyFindings(t *testing.T) {
	data, err := json.Marshal(CanBeReadBy(parse(t, `"int"`), parse(t, `"int"`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"compatible": true, "findings": []}`, string(data))
}

func TestCanBeReadBy_LogicalTypeFragments(t *testing.T) {
	decimal := `{"type": "bytes", "logicalType": "decimal", "precision": 4, "scale": 2}`
	assert.True(t, CanBeReadBy(parse(t, decimal), parse(t, `"string"`)).Compatible)

	result := CanBeReadBy(parse(t, decimal), parse(t, `"int"`))
	require.Len(t, result.Findings, 1)
	report := result.Findings[0].Report()
	require.NotNil(t, report.Writer)
	assert.Equal(t, `{"type":"bytes","logicalType":"decimal","precision":4,"scale":2}`, *report.Writer)
}

func TestLocation_Steps(t *testing.T) {
	loc := Location{FieldSegment("element"), ElementSegment(), BranchSegment(0), ValueSegment(), SymbolSegment("C")}
	data, err := json.Marshal(loc.Steps())
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"kind": "field", "name": "element"},
		{"kind": "element"},
		{"kind": "branch", "index": 0},
		{"kind": "value"},
		{"kind": "symbol", "name": "C"}
	]`, string(data))
}

func TestCanBeReadBy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := CanBeReadBy(parse(t, userV1), parse(t, userV1), WithContext(ctx))
	assert.False(t, result.Compatible)
	assert.Empty(t, result.Findings)

	_, err := CheckLevel(parse(t, userV2), []*schema.Schema{parse(t, userV1)}, "BACKWARD", WithContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "/", Location(nil).String())
	loc := Location{FieldSegment("items"), ElementSegment(), BranchSegment(2), ValueSegment(), SymbolSegment("C")}
	assert.Equal(t, "/items/element/2/value/C", loc.String())

	base := Location{FieldSegment("a")}
	extended := base.With(FieldSegment("b"))
	assert.Len(t, base, 1)
	assert.Equal(t, "/a/b", extended.String())
}

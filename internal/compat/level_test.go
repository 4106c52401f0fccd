package compat

import (
	"testing"

	"avrocompat/internal/schema"
	"avrocompat/internal/schema/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLevel(t *testing.T) {
	v1 := parse(t, userV1)
	v2 := parse(t, userV2)
	v3 := parse(t, userV3)

	tests := []struct {
		name       string
		candidate  *schema.Schema
		previous   []*schema.Schema
		level      types.CompatibilityLevel
		wantCompat bool
		wantCats   []Category
	}{
		{
			name:       "Backward Added Optional Field",
			candidate:  v2,
			previous:   []*schema.Schema{v1},
			level:      types.Backward,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Backward Added Required Field",
			candidate:  v3,
			previous:   []*schema.Schema{v2},
			level:      types.Backward,
			wantCompat: false,
			wantCats:   []Category{MissingDefaultValue},
		},
		{
			name:       "Forward Widened Field",
			candidate:  v2,
			previous:   []*schema.Schema{v1},
			level:      types.Forward,
			wantCompat: false,
			wantCats:   []Category{TypeMismatch},
		},
		{
			name:       "Full Checks Both Directions",
			candidate:  v3,
			previous:   []*schema.Schema{v1},
			level:      types.Full,
			wantCompat: false,
			wantCats:   []Category{MissingDefaultValue, TypeMismatch},
		},
		{
			name:       "Non Transitive Checks Newest Only",
			candidate:  v2,
			previous:   []*schema.Schema{v3, v1},
			level:      types.Backward,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Transitive Checks Every Version",
			candidate:  v2,
			previous:   []*schema.Schema{v3, v1},
			level:      types.BackwardTransitive,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Transitive Reports Old Failure",
			candidate:  v3,
			previous:   []*schema.Schema{v1, v2},
			level:      types.BackwardTransitive,
			wantCompat: false,
			wantCats:   []Category{MissingDefaultValue, MissingDefaultValue},
		},
		{
			name:       "None",
			candidate:  parse(t, `"string"`),
			previous:   []*schema.Schema{v1},
			level:      types.None,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "No Previous Versions",
			candidate:  v1,
			level:      types.FullTransitive,
			wantCompat: true,
			wantCats:   []Category{},
		},
		{
			name:       "Lower Case Level",
			candidate:  v3,
			previous:   []*schema.Schema{v2},
			level:      "backward",
			wantCompat: false,
			wantCats:   []Category{MissingDefaultValue},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CheckLevel(tt.candidate, tt.previous, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompat, result.Compatible)
			assert.Equal(t, tt.wantCats, categories(result.Findings))
		})
	}
}

func TestCheckLevel_InvalidLevel(t *testing.T) {
	_, err := CheckLevel(parse(t, userV1), nil, "SIDEWAYS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid compatibility level")
}

func TestCheckLevel_ShortCircuit(t *testing.T) {
	v1 := parse(t, userV1)
	v2 := parse(t, userV2)
	v3 := parse(t, userV3)

	result, err := CheckLevel(v3, []*schema.Schema{v1, v2}, types.BackwardTransitive, ShortCircuit())
	require.NoError(t, err)
	assert.False(t, result.Compatible)
	assert.Len(t, result.Findings, 1)
}

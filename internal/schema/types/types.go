package types

import (
	"fmt"
	"strings"
)

// CheckType selects which judgment a check runs
type CheckType string

const (
	// CanBeReadBy checks that data written with the source can be read with the target
	CanBeReadBy CheckType = "CAN_BE_READ_BY"
	// MutualRead checks both directions
	MutualRead CheckType = "MUTUAL_READ"
)

// CompatibilityLevel represents the compatibility level for schema evolution
type CompatibilityLevel string

const (
	// Backward compatibility: new schema can read data written with old schema
	Backward CompatibilityLevel = "BACKWARD"
	// Forward compatibility: old schema can read data written with new schema
	Forward CompatibilityLevel = "FORWARD"
	// Full compatibility: both backward and forward compatibility
	Full CompatibilityLevel = "FULL"
	// None: no compatibility checking
	None CompatibilityLevel = "NONE"
	// BackwardTransitive: new schema can read data written with all previous schemas
	BackwardTransitive CompatibilityLevel = "BACKWARD_TRANSITIVE"
	// ForwardTransitive: all previous schemas can read data written with new schema
	ForwardTransitive CompatibilityLevel = "FORWARD_TRANSITIVE"
	// FullTransitive: both backward and forward transitive compatibility
	FullTransitive CompatibilityLevel = "FULL_TRANSITIVE"
)

// Transitive reports whether the level applies to every previous schema rather than the latest one
func (l CompatibilityLevel) Transitive() bool {
	switch l {
	case BackwardTransitive, ForwardTransitive, FullTransitive:
		return true
	}
	return false
}

// ParseCompatibilityLevel accepts a level name in any case
func ParseCompatibilityLevel(s string) (CompatibilityLevel, error) {
	level := CompatibilityLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case Backward, Forward, Full, None, BackwardTransitive, ForwardTransitive, FullTransitive:
		return level, nil
	}
	return "", fmt.Errorf("invalid compatibility level: %s", s)
}

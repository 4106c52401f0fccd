package compat

import (
	"fmt"

	"avrocompat/internal/schema"
	"avrocompat/internal/schema/types"
)

// CheckLevel checks candidate against previous schemas, ordered oldest first, under a
// registry style compatibility level. Non-transitive levels only look at the newest
// previous schema. Findings from every checked version are concatenated in order.
func CheckLevel(candidate *schema.Schema, previous []*schema.Schema, level types.CompatibilityLevel, opts ...Option) (Result, error) {
	level, err := types.ParseCompatibilityLevel(string(level))
	if err != nil {
		return Result{}, err
	}
	if level == types.None || len(previous) == 0 {
		return Result{Compatible: true, Findings: []Finding{}}, nil
	}

	// For transitive compatibility, we need to check against all previous versions
	against := previous
	if !level.Transitive() {
		against = previous[len(previous)-1:]
	}

	o := newOptions(opts)
	total := Result{Compatible: true, Findings: []Finding{}}
	for _, old := range against {
		if err := o.ctx.Err(); err != nil {
			return Result{}, err
		}
		var res Result
		switch level {
		case types.Backward, types.BackwardTransitive:
			// New schema can read data written with old schema
			res = CanBeReadBy(old, candidate, opts...)
		case types.Forward, types.ForwardTransitive:
			// Old schema can read data written with new schema
			res = CanBeReadBy(candidate, old, opts...)
		case types.Full, types.FullTransitive:
			res = MutualReadWith(old, candidate, opts...)
		default:
			return Result{}, fmt.Errorf("unsupported compatibility level: %s", level)
		}
		total.Compatible = total.Compatible && res.Compatible
		total.Findings = append(total.Findings, res.Findings...)
		if o.shortCircuit && !total.Compatible {
			break
		}
	}
	if err := o.ctx.Err(); err != nil {
		return Result{}, err
	}
	return total, nil
}

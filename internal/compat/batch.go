package compat

import (
	"context"

	"avrocompat/internal/schema"
	"avrocompat/internal/schema/types"

	"golang.org/x/sync/errgroup"
)

// Pair is one unit of a batch check
type Pair struct {
	ID           string
	Writer       *schema.Schema
	Reader       *schema.Schema
	Check        types.CheckType
	ShortCircuit bool
}

// Outcome is the result for the Pair with the same ID
type Outcome struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Result Result `json:"result" yaml:"result"`
}

// CheckAll runs every pair on at most workers goroutines and returns the outcomes in input
// order. Schema trees may be shared between pairs. It stops early when ctx is done.
func CheckAll(ctx context.Context, pairs []Pair, workers int, opts ...Option) ([]Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pairOpts := append([]Option{WithContext(ctx)}, opts...)
			if p.ShortCircuit {
				pairOpts = append(pairOpts, ShortCircuit())
			}
			result := Check(p.Writer, p.Reader, p.Check, pairOpts...)
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = Outcome{ID: p.ID, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Check runs the judgment named by check; anything but MutualRead is one-directional
func Check(writer, reader *schema.Schema, check types.CheckType, opts ...Option) Result {
	if check == types.MutualRead {
		return MutualReadWith(writer, reader, opts...)
	}
	return CanBeReadBy(writer, reader, opts...)
}

package compat

import (
	"context"

	"avrocompat/internal/schema"
)

// Result is the outcome of one judgment: a verdict and the findings behind it
type Result struct {
	Compatible bool      `json:"compatible" yaml:"compatible"`
	Findings   []Finding `json:"findings" yaml:"findings"`
}

type options struct {
	shortCircuit bool
	ctx          context.Context
}

// Option tunes a judgment
type Option func(*options)

// ShortCircuit stops at the first finding; use it when only the verdict matters
func ShortCircuit() Option {
	return func(o *options) {
		o.shortCircuit = true
	}
}

// WithContext stops the walk once ctx is done. A judgment cut short this way is never
// compatible; callers tell it apart from a real verdict by checking ctx.Err.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

func newOptions(opts []Option) options {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CanBeReadBy reports whether data written with writer can be decoded with reader
func CanBeReadBy(writer, reader *schema.Schema, opts ...Option) Result {
	o := newOptions(opts)
	findings := newResolver(o.ctx, writer, reader, o.shortCircuit).run()
	return Result{Compatible: len(findings) == 0 && o.ctx.Err() == nil, Findings: findings}
}

// MutualReadWith reports whether a and b can each read data written with the other.
// Findings from a→b come first, with a as writer; those from b→a follow with b as writer.
func MutualReadWith(a, b *schema.Schema, opts ...Option) Result {
	o := newOptions(opts)
	forward := CanBeReadBy(a, b, opts...)
	if o.shortCircuit && !forward.Compatible {
		return forward
	}
	backward := CanBeReadBy(b, a, opts...)

	findings := make([]Finding, 0, len(forward.Findings)+len(backward.Findings))
	findings = append(findings, forward.Findings...)
	findings = append(findings, backward.Findings...)
	return Result{
		Compatible: forward.Compatible && backward.Compatible,
		Findings:   findings,
	}
}

// IsReadable is the verdict of CanBeReadBy without building a report
func IsReadable(writer, reader *schema.Schema) bool {
	return CanBeReadBy(writer, reader, ShortCircuit()).Compatible
}

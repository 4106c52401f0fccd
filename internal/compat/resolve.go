package compat

import (
	"context"
	"fmt"

	"avrocompat/internal/schema"
)

// promotions lists, per writer primitive, the reader primitives that can decode it
var promotions = map[schema.Kind][]schema.Kind{
	schema.Int:    {schema.Long, schema.Float, schema.Double},
	schema.Long:   {schema.Float, schema.Double},
	schema.Float:  {schema.Double},
	schema.String: {schema.Bytes},
	schema.Bytes:  {schema.String},
}

// pair identifies a named writer/reader definition pair
type pair struct {
	writer, reader *schema.Node
}

// frame is a named pair being resolved. low is the shallowest in-progress frame the walk
// below it assumed compatible; pending holds the verdicts that rest on this frame.
type frame struct {
	depth   int
	low     int
	pending []pair
}

// verdict is the memoized outcome of a named pair. A compatible verdict with an owner
// holds only while the owner frame is still being resolved.
type verdict struct {
	ok    bool
	owner *frame
}

// resolver walks a writer tree and a reader tree in lock-step. Every named pair is walked
// at most once per accumulator kind, so the cost is bounded by the number of reachable
// pairs rather than the number of paths to them.
type resolver struct {
	ctx    context.Context
	writer *schema.Schema
	reader *schema.Schema
	main   *accumulator
	acc    *accumulator

	stack  []*frame
	active map[pair]int
	memo   map[pair]*verdict
	// pairs whose findings already went to the main accumulator
	walked map[pair]struct{}
}

// Resolve compares the writer and reader trees and returns every finding, or at most one
// when stopOnFirst is set. A named pair reached along several paths reports its findings
// once, at the first location the walk reaches it.
func Resolve(writer, reader *schema.Schema, stopOnFirst bool) []Finding {
	return newResolver(context.Background(), writer, reader, stopOnFirst).run()
}

func newResolver(ctx context.Context, writer, reader *schema.Schema, stopOnFirst bool) *resolver {
	acc := newAccumulator(stopOnFirst)
	return &resolver{
		ctx:    ctx,
		writer: writer,
		reader: reader,
		main:   acc,
		acc:    acc,
		active: make(map[pair]int),
		memo:   make(map[pair]*verdict),
		walked: make(map[pair]struct{}),
	}
}

func (r *resolver) run() []Finding {
	r.resolve(r.writer.Root(), r.reader.Root(), nil)
	return r.acc.result()
}

// stopped reports whether the walk should unwind: the accumulator is full or the caller
// gave up
func (r *resolver) stopped() bool {
	return r.acc.done() || r.ctx.Err() != nil
}

// resolve reports whether rd can decode data written with w
func (r *resolver) resolve(w, rd *schema.Node, loc Location) bool {
	if r.stopped() {
		return false
	}
	w = r.writer.Resolve(w)
	rd = r.reader.Resolve(rd)
	if !w.Kind().IsNamed() || !rd.Kind().IsNamed() {
		return r.walk(w, rd, loc)
	}

	p := pair{writer: w, reader: rd}
	if depth, ok := r.active[p]; ok {
		// Assumed compatible; any real divergence is reported where the pair was entered.
		r.assume(depth)
		return true
	}

	_, walked := r.walked[p]
	if ok, cached := r.cached(p); cached && (ok || walked || r.acc != r.main) {
		return ok
	}
	if r.acc == r.main {
		if walked {
			return r.readable(w, rd, loc)
		}
		r.walked[p] = struct{}{}
	}
	return r.enter(p, loc)
}

func (r *resolver) cached(p pair) (bool, bool) {
	v, ok := r.memo[p]
	if !ok {
		return false, false
	}
	return v.ok, true
}

func (r *resolver) assume(depth int) {
	if top := r.stack[len(r.stack)-1]; depth < top.low {
		top.low = depth
	}
}

func (r *resolver) enter(p pair, loc Location) bool {
	f := &frame{depth: len(r.stack), low: len(r.stack)}
	r.stack = append(r.stack, f)
	r.active[p] = f.depth

	ok := r.walk(p.writer, p.reader, loc)

	r.stack = r.stack[:len(r.stack)-1]
	delete(r.active, p)
	r.settle(p, f, ok)
	return ok
}

// settle memoizes the verdict of a finished pair. An incompatible verdict is final since
// assumptions only ever hide findings. A compatible one is final once no frame it leaned
// on is still open; until then it is parked on the shallowest such frame.
func (r *resolver) settle(p pair, f *frame, ok bool) {
	if n := len(r.stack); n > 0 && f.low < r.stack[n-1].low {
		r.stack[n-1].low = f.low
	}

	switch {
	case !ok:
		r.memo[p] = &verdict{ok: false}
		for _, q := range f.pending {
			if v := r.memo[q]; v != nil && v.owner == f {
				delete(r.memo, q)
			}
		}
	case f.low >= f.depth:
		r.memo[p] = &verdict{ok: true}
		for _, q := range f.pending {
			if v := r.memo[q]; v != nil && v.owner == f {
				v.owner = nil
			}
		}
	default:
		owner := r.stack[f.low]
		r.memo[p] = &verdict{ok: true, owner: owner}
		owner.pending = append(owner.pending, p)
		for _, q := range f.pending {
			if v := r.memo[q]; v != nil && v.owner == f {
				v.owner = owner
				owner.pending = append(owner.pending, q)
			}
		}
	}
}

func (r *resolver) walk(w, rd *schema.Node, loc Location) bool {
	wk, rk := w.Kind(), rd.Kind()
	switch {
	case wk == schema.Union:
		return r.writerUnion(w, rd, loc)
	case rk == schema.Union:
		return r.readerUnion(w, rd, loc)
	case wk.IsPrimitive() && rk.IsPrimitive():
		return r.primitive(w, rd, loc)
	case wk != rk:
		return r.mismatch(w, rd, loc)
	}

	switch wk {
	case schema.Record:
		return r.record(w, rd, loc)
	case schema.Enum:
		return r.enum(w, rd, loc)
	case schema.Fixed:
		return r.fixed(w, rd, loc)
	case schema.Array:
		return r.resolve(w.Items(), rd.Items(), loc.With(ElementSegment()))
	case schema.Map:
		return r.resolve(w.Values(), rd.Values(), loc.With(ValueSegment()))
	default:
		return r.mismatch(w, rd, loc)
	}
}

func (r *resolver) primitive(w, rd *schema.Node, loc Location) bool {
	if w.Kind() == rd.Kind() {
		return true
	}
	for _, k := range promotions[w.Kind()] {
		if k == rd.Kind() {
			return true
		}
	}
	return r.mismatch(w, rd, loc)
}

func (r *resolver) mismatch(w, rd *schema.Node, loc Location) bool {
	r.acc.add(Finding{
		Category: TypeMismatch,
		Location: loc,
		Writer:   w,
		Reader:   rd,
		Message:  fmt.Sprintf("reader type %s cannot decode writer type %s", rd.Kind(), w.Kind()),
	})
	return false
}

// writerUnion requires every writer branch to be readable on its own
func (r *resolver) writerUnion(w, rd *schema.Node, loc Location) bool {
	ok := true
	for i, branch := range w.Branches() {
		at := loc.With(BranchSegment(i))
		if r.resolve(branch, rd, at) {
			continue
		}
		if r.stopped() {
			return false
		}
		ok = false
		b := r.writer.Resolve(branch)
		r.acc.add(Finding{
			Category: MissingUnionBranch,
			Location: at,
			Writer:   b,
			Reader:   rd,
			Message:  fmt.Sprintf("reader cannot decode writer union branch %d (%s)", i, b.Kind()),
		})
	}
	return ok
}

// readerUnion accepts the first reader branch that decodes the writer
func (r *resolver) readerUnion(w, rd *schema.Node, loc Location) bool {
	for _, branch := range rd.Branches() {
		if r.readable(w, branch, loc) {
			return true
		}
	}
	if r.ctx.Err() != nil {
		return false
	}
	var first *schema.Node
	if branches := rd.Branches(); len(branches) > 0 {
		first = r.reader.Resolve(branches[0])
	}
	r.acc.add(Finding{
		Category: TypeMismatch,
		Location: loc,
		Writer:   w,
		Reader:   first,
		Message:  fmt.Sprintf("no branch of the reader union can decode writer type %s", w.Kind()),
	})
	return false
}

// readable runs a short-circuit trial that leaves the real accumulator untouched
func (r *resolver) readable(w, rd *schema.Node, loc Location) bool {
	saved := r.acc
	r.acc = newAccumulator(true)
	ok := r.resolve(w, rd, loc)
	r.acc = saved
	return ok
}

func (r *resolver) nameMismatch(w, rd *schema.Node, loc Location) bool {
	r.acc.add(Finding{
		Category: NameMismatch,
		Location: loc,
		Writer:   w,
		Reader:   rd,
		Message:  fmt.Sprintf("expected %s %s, found %s", rd.Kind(), rd.FullName(), w.FullName()),
	})
	return false
}

func (r *resolver) record(w, rd *schema.Node, loc Location) bool {
	if !schema.SameName(w, rd) {
		return r.nameMismatch(w, rd, loc)
	}
	ok := true
	// Writer-only fields are skipped by the reader, so only reader fields need a source.
	for _, rf := range rd.Fields() {
		at := loc.With(FieldSegment(rf.Name()))
		if wf := matchField(w, rf); wf != nil {
			if !r.resolve(wf.Type(), rf.Type(), at) {
				ok = false
			}
		} else if !rf.HasDefault() {
			ok = false
			r.acc.add(Finding{
				Category: MissingDefaultValue,
				Location: at,
				Reader:   r.reader.Resolve(rf.Type()),
				Message:  fmt.Sprintf("reader field %q has no default value and is missing from the writer", rf.Name()),
			})
		}
		if r.stopped() {
			return false
		}
	}
	return ok
}

// matchField finds the field of rec that corresponds to f, preferring an exact name match
func matchField(rec *schema.Node, f *schema.Field) *schema.Field {
	if exact, ok := rec.Field(f.Name()); ok {
		return exact
	}
	for _, candidate := range rec.Fields() {
		if candidate.Matches(f) {
			return candidate
		}
	}
	return nil
}

func (r *resolver) enum(w, rd *schema.Node, loc Location) bool {
	if !schema.SameName(w, rd) {
		return r.nameMismatch(w, rd, loc)
	}
	if _, ok := rd.EnumDefault(); ok {
		return true
	}
	ok := true
	for _, symbol := range w.Symbols() {
		if rd.HasSymbol(symbol) {
			continue
		}
		ok = false
		r.acc.add(Finding{
			Category: MissingEnumSymbols,
			Location: loc.With(SymbolSegment(symbol)),
			Writer:   w,
			Reader:   rd,
			Message:  fmt.Sprintf("reader enum %s has no symbol %s and no default", rd.FullName(), symbol),
		})
		if r.acc.done() {
			return false
		}
	}
	return ok
}

func (r *resolver) fixed(w, rd *schema.Node, loc Location) bool {
	if !schema.SameName(w, rd) {
		return r.nameMismatch(w, rd, loc)
	}
	if w.Size() != rd.Size() {
		r.acc.add(Finding{
			Category: FixedSizeMismatch,
			Location: loc,
			Writer:   w,
			Reader:   rd,
			Message:  fmt.Sprintf("expected fixed size %d, found %d", rd.Size(), w.Size()),
		})
		return false
	}
	return true
}

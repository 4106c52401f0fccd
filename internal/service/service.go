package service

import (
	"context"
	"fmt"
	"time"

	"avrocompat/internal/compat"
	"avrocompat/internal/schema"
	"avrocompat/internal/schema/formats/avro"
	"avrocompat/internal/schema/types"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Parser turns schema text into a validated schema tree
type Parser interface {
	Parse(schemaStr string) (*schema.Schema, error)
}

// Service runs compatibility checks on schema text. Workers bounds batch
// parallelism and Timeout, when positive, bounds each call.
type Service struct {
	Parser  Parser
	Workers int
	Timeout time.Duration
}

func NewService(workers int, timeout time.Duration) Service {
	return Service{
		Parser:  avro.New(),
		Workers: workers,
		Timeout: timeout,
	}
}

func (s Service) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	writer, reader, err := s.parsePair(req)
	if err != nil {
		return CheckResponse{}, err
	}

	check := req.CheckType()
	result, err := run(ctx, s.Timeout, func(ctx context.Context) (compat.Result, error) {
		result := compat.Check(writer, reader, check, options(ctx, req.ShortCircuit)...)
		return result, ctx.Err()
	})
	if err != nil {
		return CheckResponse{}, err
	}

	log.Debug().
		Str("id", req.ID).
		Str("check", string(check)).
		Bool("compatible", result.Compatible).
		Int("findings", len(result.Findings)).
		Msg("compatibility checked")
	return CheckResponse{ID: req.ID, Check: check, Result: result}, nil
}

func (s Service) CheckBatch(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	if len(req.Checks) == 0 {
		return BatchResponse{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("batch contains no checks")
	}

	pairs := make([]compat.Pair, len(req.Checks))
	for i, item := range req.Checks {
		writer, reader, err := s.parsePair(item)
		if err != nil {
			return BatchResponse{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("check %d %s", i, describe(item.ID))).
				WithCause(err)
		}
		pairs[i] = compat.Pair{
			ID:           item.ID,
			Writer:       writer,
			Reader:       reader,
			Check:        item.CheckType(),
			ShortCircuit: item.ShortCircuit,
		}
	}

	outcomes, err := run(ctx, s.Timeout, func(ctx context.Context) ([]compat.Outcome, error) {
		return compat.CheckAll(ctx, pairs, s.Workers)
	})
	if err != nil {
		return BatchResponse{}, err
	}

	resp := BatchResponse{Results: make([]CheckResponse, len(outcomes))}
	incompatible := 0
	for i, o := range outcomes {
		resp.Results[i] = CheckResponse{ID: o.ID, Check: pairs[i].Check, Result: o.Result}
		if !o.Result.Compatible {
			incompatible++
		}
	}
	log.Debug().
		Int("checks", len(pairs)).
		Int("incompatible", incompatible).
		Int("workers", s.Workers).
		Msg("batch checked")
	return resp, nil
}

func (s Service) CheckLevel(ctx context.Context, req LevelRequest) (LevelResponse, error) {
	level, err := types.ParseCompatibilityLevel(req.Level)
	if err != nil {
		return LevelResponse{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(err.Error())
	}

	candidate, err := s.parse("schema", req.Schema)
	if err != nil {
		return LevelResponse{}, err
	}
	previous := make([]*schema.Schema, len(req.Previous))
	for i, text := range req.Previous {
		if previous[i], err = s.parse(fmt.Sprintf("previous schema %d", i), text); err != nil {
			return LevelResponse{}, err
		}
	}

	result, err := run(ctx, s.Timeout, func(ctx context.Context) (compat.Result, error) {
		return compat.CheckLevel(candidate, previous, level, options(ctx, req.ShortCircuit)...)
	})
	if err != nil {
		return LevelResponse{}, err
	}

	checked := 0
	if level != types.None && len(previous) > 0 {
		checked = 1
		if level.Transitive() {
			checked = len(previous)
		}
	}
	log.Debug().
		Str("level", string(level)).
		Int("checked", checked).
		Bool("compatible", result.Compatible).
		Msg("compatibility level checked")
	return LevelResponse{Level: level, Checked: checked, Result: result}, nil
}

func (s Service) parsePair(req CheckRequest) (*schema.Schema, *schema.Schema, error) {
	writer, err := s.parse("writer schema", req.Writer)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.parse("reader schema", req.Reader)
	if err != nil {
		return nil, nil, err
	}
	return writer, reader, nil
}

func (s Service) parse(label, text string) (*schema.Schema, error) {
	parsed, err := s.Parser.Parse(text)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid " + label).
			WithCause(err)
	}
	return parsed, nil
}

func options(ctx context.Context, shortCircuit bool) []compat.Option {
	opts := []compat.Option{compat.WithContext(ctx)}
	if shortCircuit {
		opts = append(opts, compat.ShortCircuit())
	}
	return opts
}

func describe(id string) string {
	if id == "" {
		return "(no id)"
	}
	return fmt.Sprintf("%q", id)
}

// run calls fn and gives up when ctx ends or timeout elapses. fn receives the bounded
// context and is expected to return soon after it is done.
func run[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil || o.err != ctx.Err() {
			return o.value, o.err
		}
	case <-ctx.Done():
	}
	var zero T
	log.Warn().Err(ctx.Err()).Msg("compatibility check abandoned")
	return zero, fmt.Errorf("compatibility check: %w", ctx.Err())
}

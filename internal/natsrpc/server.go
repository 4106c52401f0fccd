package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultPrefix is the subject prefix used when none is configured
const DefaultPrefix = "avrocompat"

const queueGroup = "avrocompat"

// Operation subjects, appended to the prefix
const (
	OpCheck = "check"
	OpBatch = "batch"
	OpLevel = "level"
)

// Error codes carried in a reply envelope
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeDeadlineExceeded = "deadline_exceeded"
	CodeInternal         = "internal"
)

// Envelope is the body of every reply: exactly one of Result or Error is set
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server answers compatibility requests on <prefix>.check, <prefix>.batch and
// <prefix>.level. Instances share a queue group so requests are load balanced.
type Server struct {
	nc     *nats.Conn
	svc    service.Service
	prefix string
	subs   []*nats.Subscription
}

func NewServer(nc *nats.Conn, svc service.Service, prefix string) *Server {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Server{nc: nc, svc: svc, prefix: prefix}
}

// Subject returns the full subject for op
func Subject(prefix, op string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + op
}

func (s *Server) Start() error {
	handlers := map[string]func(context.Context, []byte) (any, error){
		OpCheck: func(ctx context.Context, data []byte) (any, error) {
			req, err := service.DecodeCheckRequest(data)
			if err != nil {
				return nil, err
			}
			return s.svc.Check(ctx, req)
		},
		OpBatch: func(ctx context.Context, data []byte) (any, error) {
			req, err := service.DecodeBatchRequest(data)
			if err != nil {
				return nil, err
			}
			return s.svc.CheckBatch(ctx, req)
		},
		OpLevel: func(ctx context.Context, data []byte) (any, error) {
			req, err := service.DecodeLevelRequest(data)
			if err != nil {
				return nil, err
			}
			return s.svc.CheckLevel(ctx, req)
		},
	}

	for _, op := range []string{OpCheck, OpBatch, OpLevel} {
		subject := Subject(s.prefix, op)
		handle := handlers[op]
		sub, err := s.nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
			s.respond(msg, handle)
		})
		if err != nil {
			_ = s.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
		log.Info().Str("subject", subject).Str("queue", queueGroup).Msg("NATS responder subscribed")
	}
	return s.nc.Flush()
}

// Stop drains the subscriptions so in-flight requests still get a reply
func (s *Server) Stop() error {
	var errs []error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain %s: %w", sub.Subject, err))
		}
	}
	s.subs = nil
	return errors.Join(errs...)
}

func (s *Server) respond(msg *nats.Msg, handle func(context.Context, []byte) (any, error)) {
	var env Envelope
	result, err := handle(context.Background(), msg.Data)
	if err == nil {
		env.Result, err = json.Marshal(result)
	}
	if err != nil {
		env = Envelope{Error: errorBody(err)}
		log.Debug().Err(err).Str("subject", msg.Subject).Msg("NATS request failed")
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to encode reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to send reply")
	}
}

func errorBody(err error) *ErrorBody {
	switch {
	case errbuilder.CodeOf(err) == errbuilder.CodeInvalidArgument:
		return &ErrorBody{Code: CodeInvalidArgument, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &ErrorBody{Code: CodeDeadlineExceeded, Message: err.Error()}
	default:
		return &ErrorBody{Code: CodeInternal, Message: err.Error()}
	}
}

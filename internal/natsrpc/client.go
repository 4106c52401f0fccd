package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/nats-io/nats.go"
)

// Client sends compatibility requests to a Server over NATS request/reply
type Client struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewClient creates a client; timeout applies when the caller's context has no deadline
func NewClient(nc *nats.Conn, prefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{nc: nc, prefix: prefix, timeout: timeout}
}

func (c *Client) Check(ctx context.Context, req service.CheckRequest) (service.CheckReport, error) {
	var report service.CheckReport
	err := c.call(ctx, OpCheck, req, &report)
	return report, err
}

func (c *Client) CheckBatch(ctx context.Context, req service.BatchRequest) (service.BatchReport, error) {
	var report service.BatchReport
	err := c.call(ctx, OpBatch, req, &report)
	return report, err
}

func (c *Client) CheckLevel(ctx context.Context, req service.LevelRequest) (service.LevelReport, error) {
	var report service.LevelReport
	err := c.call(ctx, OpLevel, req, &report)
	return report, err
}

func (c *Client) call(ctx context.Context, op string, req, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	subject := Subject(c.prefix, op)
	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("no compatibility service is listening on " + subject).
				WithCause(err)
		}
		return fmt.Errorf("request %s: %w", subject, err)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if env.Error != nil {
		return remoteError(env.Error)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func remoteError(body *ErrorBody) error {
	switch body.Code {
	case CodeInvalidArgument:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(body.Message)
	case CodeDeadlineExceeded:
		return fmt.Errorf("remote: %s: %w", body.Message, context.DeadlineExceeded)
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("remote: " + body.Message)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"avrocompat/internal/natsrpc"
	"avrocompat/internal/rest"
	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	natsd "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	HTTPAddr     string
	NATSURL      string
	NATSSubject  string
	EmbeddedNATS bool
	EmbeddedPort int
	Workers      int
	Timeout      time.Duration
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compatibility checks over HTTP and NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveServeOptions(cmd, opts))
		},
	}
	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", ":8081", "HTTP server address")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "", "NATS server URL; empty disables the NATS responder")
	cmd.Flags().StringVar(&opts.NATSSubject, "nats-subject", natsrpc.DefaultPrefix, "NATS subject prefix")
	cmd.Flags().BoolVar(&opts.EmbeddedNATS, "embedded-nats", false, "Run an in-process NATS server and answer on it")
	cmd.Flags().IntVar(&opts.EmbeddedPort, "embedded-nats-port", natsd.DEFAULT_PORT, "Port of the embedded NATS server")
	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "Parallel checks per batch")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Time limit per request")
	return cmd
}

func resolveServeOptions(cmd *cobra.Command, opts serveOptions) serveOptions {
	opts.HTTPAddr = resolveString(cmd, opts.HTTPAddr, "http_addr", "http-addr")
	opts.NATSURL = resolveString(cmd, opts.NATSURL, "nats_url", "nats-url")
	opts.NATSSubject = resolveString(cmd, opts.NATSSubject, "nats_subject", "nats-subject")
	opts.EmbeddedNATS = resolveBool(cmd, opts.EmbeddedNATS, "embedded_nats", "embedded-nats")
	opts.Workers = resolveInt(cmd, opts.Workers, "workers", "workers")
	opts.Timeout = resolveDuration(cmd, opts.Timeout, "timeout", "timeout")
	return opts
}

type server struct {
	opts       serveOptions
	svc        service.Service
	http       *http.Server
	listener   net.Listener
	nc         *nats.Conn
	natsClosed chan struct{}
	responder  *natsrpc.Server
	natsServer *natsd.Server
}

func newServer(opts serveOptions) *server {
	svc := service.NewService(opts.Workers, opts.Timeout)
	gin.SetMode(gin.ReleaseMode)
	return &server{
		opts: opts,
		svc:  svc,
		http: &http.Server{Addr: opts.HTTPAddr, Handler: rest.Routes(svc), ReadHeaderTimeout: 10 * time.Second},
	}
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(opts)
	if err := srv.setupNATS(); err != nil {
		log.Error().Err(err).Msg("failed to set up NATS")
		log.Warn().Msg("continuing with HTTP only")
	}

	errCh, err := srv.serveHTTP()
	if err != nil {
		srv.shutdown(5 * time.Second)
		return err
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error().Err(err).Msg("HTTP server error")
	}
	srv.shutdown(5 * time.Second)
	return err
}

func (s *server) serveHTTP() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.opts.HTTPAddr)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("listen on " + s.opts.HTTPAddr).
			WithCause(err)
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

func (s *server) setupNATS() error {
	url := s.opts.NATSURL
	if s.opts.EmbeddedNATS {
		ns, err := natsrpc.StartEmbedded("127.0.0.1", s.opts.EmbeddedPort)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		s.natsServer = ns
		url = ns.ClientURL()
	}
	if url == "" {
		return nil
	}

	log.Debug().Str("url", url).Msg("connecting to NATS")
	closed := make(chan struct{})
	nc, err := nats.Connect(url,
		nats.Name("avrocompat"),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	s.nc = nc
	s.natsClosed = closed

	s.responder = natsrpc.NewServer(nc, s.svc, s.opts.NATSSubject)
	if err := s.responder.Start(); err != nil {
		return fmt.Errorf("start NATS responder: %w", err)
	}
	log.Info().Str("url", url).Msg("connected to NATS")
	return nil
}

func (s *server) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("shutting down server")
	if s.listener != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}
	if s.responder != nil {
		if err := s.responder.Stop(); err != nil {
			log.Error().Err(err).Msg("NATS responder stop error")
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Error().Err(err).Msg("NATS drain error")
		}
		select {
		case <-s.natsClosed:
		case <-ctx.Done():
			log.Warn().Msg("timed out waiting for NATS connection to close")
		}
	}
	if s.natsServer != nil {
		log.Info().Msg("shutting down embedded NATS server")
		s.natsServer.Shutdown()
	}
}

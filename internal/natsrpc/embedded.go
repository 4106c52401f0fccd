package natsrpc

import (
	"fmt"
	"time"

	natsd "github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog/log"
)

// StartEmbedded runs an in-process NATS server. A port of -1 picks a free one;
// use ClientURL on the result to connect.
func StartEmbedded(host string, port int) (*natsd.Server, error) {
	opts := &natsd.Options{
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 8 * 1024 * 1024, // 8MB
	}

	ns, err := natsd.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}

	log.Info().Str("url", ns.ClientURL()).Msg("embedded NATS server started")
	return ns, nil
}

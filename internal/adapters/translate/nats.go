package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATS sends each request on a subject and waits for the worker's reply.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("voxbridge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info().Str("module", "translate.nats").Str("url", url).Str("subject", subject).Msg("connected")
	return NewNATSConn(nc, subject), nil
}

// NewNATSConn wraps an existing connection.
func NewNATSConn(nc *nats.Conn, subject string) *NATS {
	return &NATS{nc: nc, subject: subject}
}

func (n *NATS) Translate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("encode request: %w", err)
	}
	msg, err := n.nc.RequestWithContext(ctx, n.subject, data)
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("nats request: %w", err)
	}
	return decodeReply(msg.Data)
}

func (n *NATS) Close() error {
	return n.nc.Drain()
}

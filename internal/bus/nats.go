package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

type NATSConfig struct {
	URL            string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// NATS adapts a core (non-JetStream) NATS connection to the Bus port.
type NATS struct {
	conn           *nats.Conn
	publishTimeout time.Duration
	logger         *logger.Logger
}

func ConnectNATS(cfg NATSConfig, log *logger.Logger) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("transaction-notifier"),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to NATS at %s: %v", domain.ErrConnection, cfg.URL, err)
	}

	log.Info(context.Background(), "Connected to NATS",
		"url", cfg.URL,
	)

	return &NATS{
		conn:           conn,
		publishTimeout: cfg.PublishTimeout,
		logger:         log,
	}, nil
}

// Publish sends the payload and flushes, so an unreachable broker is
// reported to the caller instead of buffered away.
func (n *NATS) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("%w: publishing to %s: %v", domain.ErrConnection, subject, err)
	}

	if err := n.conn.FlushTimeout(n.publishTimeout); err != nil {
		return fmt.Errorf("%w: flushing publish to %s: %v", domain.ErrConnection, subject, err)
	}

	n.logger.Debug(ctx, "Event published",
		"bus_subject", subject,
		"payload_bytes", len(payload),
	)

	return nil
}

func (n *NATS) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error(context.Background(), "Handler panicked",
					"bus_subject", msg.Subject,
					"panic", r,
				)
			}
		}()

		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subscribing to %s: %v", domain.ErrConnection, subject, err)
	}

	n.logger.Info(context.Background(), "Subscribed",
		"bus_subject", subject,
	)

	return sub, nil
}

// Close drains the connection so already-delivered messages finish their
// handlers before the connection drops.
func (n *NATS) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- n.conn.Drain()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: draining NATS connection: %v", domain.ErrConnection, err)
		}
		return nil
	case <-ctx.Done():
		n.conn.Close()
		return ctx.Err()
	}
}

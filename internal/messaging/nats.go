// Package messaging provides a NATS client wrapper used to hand work to
// out-of-process consumers such as the mail sender.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"puzzlemarket/internal/middleware"
	"puzzlemarket/internal/observability"

	"github.com/nats-io/nats.go"
)

// SubjectDigestEmail carries digest emails to the mail sender.
const SubjectDigestEmail = "marketplace.digest.email"

// Publisher is the part of the client the notifiers depend on.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
	FlushTimeout  time.Duration
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "puzzlemarket",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
		FlushTimeout:  5 * time.Second,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	log := middleware.Logger.With(slog.String("component", "nats"))
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.FlusherTimeout(config.FlushTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", slog.String("error", err.Error()))
				return
			}
			log.Warn("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info("connected", slog.String("url", nc.ConnectedUrl()))

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to subject and waits for the server to acknowledge the
// flush, so a nil error means the message left this process.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	ctx, span := observability.GetTraceLayer().TracePublish(ctx, subject)
	defer span.End()

	if err := c.conn.Publish(subject, data); err != nil {
		observability.RecordErrorInContext(ctx, err)
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := c.conn.FlushWithContext(ctx); err != nil {
		observability.RecordErrorInContext(ctx, err)
		return fmt.Errorf("nats flush %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// IsConnected reports the connection state for health checks.
func (c *NATSClient) IsConnected() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			middleware.Logger.Warn("nats drain failed", slog.String("subject", subject), slog.String("error", err.Error()))
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		middleware.Logger.Warn("nats connection drain failed", slog.String("error", err.Error()))
	}
}

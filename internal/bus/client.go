package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// Outbound event subjects live with the event log.
const (
	// SubjectTrustSignal carries moderation and community tallies for a user.
	SubjectTrustSignal = "veil.trust.signal"
	// SubjectRegistered announces a started instance.
	SubjectRegistered = "veil.agent.registered"
)

// TrustSignal is the payload consumed from SubjectTrustSignal.
type TrustSignal struct {
	UserID string            `json:"user_id"`
	Tally  trust.ActionTally `json:"tally"`
}

// ParseTrustSignal decodes and validates a trust signal payload.
func ParseTrustSignal(data []byte) (TrustSignal, error) {
	var sig TrustSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return sig, fmt.Errorf("decode trust signal: %w", err)
	}
	if sig.UserID == "" {
		return sig, fmt.Errorf("trust signal missing user_id")
	}
	if err := sig.Tally.Validate(); err != nil {
		return sig, fmt.Errorf("trust signal tally: %w", err)
	}
	return sig, nil
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("veilmatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Connected reports whether the underlying connection is up.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Drain()
}

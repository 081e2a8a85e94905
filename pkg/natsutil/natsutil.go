// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation, plus the event publisher faultscope uses
// to announce analyses and canvas writes.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects for events emitted by the API server.
const (
	SubjectAnalysis = "faultscope.analysis"
	SubjectCanvas   = "faultscope.canvas"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Connect dials NATS with reconnect settings suited to a long-running server.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
// Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// Publisher is a fire-and-forget event sink. A Publisher with a nil
// connection (events disabled) accepts and discards everything.
type Publisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewPublisher wraps nc. nc may be nil.
func NewPublisher(nc *nats.Conn, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{nc: nc, log: log}
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.nc != nil
}

// Emit publishes v on subject. Failures are logged, never returned: events
// are advisory and must not fail the request that produced them.
func (p *Publisher) Emit(ctx context.Context, subject string, v any) {
	if !p.Enabled() {
		return
	}
	if err := Publish(ctx, p.nc, subject, v); err != nil {
		p.log.Warn("event publish failed", "subject", subject, "err", err)
	}
}

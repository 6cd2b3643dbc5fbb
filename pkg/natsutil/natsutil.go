// Package natsutil provides typed NATS publish/subscribe helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
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

// MalformedFunc receives messages whose payload could not be decoded.
type MalformedFunc func(msg *nats.Msg, err error)

// Option configures a subscription.
type Option func(*subOptions)

type subOptions struct {
	malformed MalformedFunc
}

// OnMalformed sets the callback for undecodable messages. Without it they
// are dropped.
func OnMalformed(fn MalformedFunc) Option {
	return func(o *subOptions) { o.malformed = fn }
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T), opts ...Option) (*nats.Subscription, error) {
	return nc.Subscribe(subject, decoder(handler, opts))
}

// QueueSubscribe is Subscribe within a queue group, so each message is
// handled by one member of the group.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, handler func(context.Context, T), opts ...Option) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, decoder(handler, opts))
}

func decoder[T any](handler func(context.Context, T), opts []Option) nats.MsgHandler {
	var o subOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			if o.malformed != nil {
				o.malformed(msg, err)
			}
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	}
}

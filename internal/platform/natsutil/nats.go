package natsutil

import (
	"context"
	"fmt"
	"time"

	"github.com/auction-sync/project/internal/dispatch"
	"github.com/auction-sync/project/internal/messaging"
	"github.com/auction-sync/project/internal/sharding"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

func ConnectJetStream(url string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name("auction-sync"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	if err := messaging.EnsureStreams(js); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, JS: js}, nil
}

func ConnectJetStreamWithRetry(url string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ConnectJetStream(url)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect jetstream timeout after %s: %w", timeout, lastErr)
}

func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// Ready reports an error unless the connection is up.
func (c *Client) Ready(context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("nats connection is nil")
	}
	if status := c.Conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", status.String())
	}
	return nil
}

const defaultPublishTimeout = 5 * time.Second

type JetStreamPublisher struct {
	JS nats.JetStreamContext
}

// Publish sends payload with msgID as the JetStream dedup key and the
// caller's trace context in the headers.
func (p JetStreamPublisher) Publish(ctx context.Context, subject, msgID string, payload []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	_, err := p.JS.PublishMsg(msg, nats.MsgId(msgID), nats.Context(ctx))
	return err
}

// SubscribeConfig tunes the durable consumer behind a subscription.
type SubscribeConfig struct {
	Queue         string
	AckWait       time.Duration
	MaxDeliver    int
	NotFoundDelay time.Duration
}

// Subscribe binds d to a durable queue subscription on subject. The queue name
// doubles as the durable consumer name, so it must be unique per subject.
// Each message is acked, nak'd or terminated according to the dispatcher's
// outcome.
func Subscribe(js nats.JetStreamContext, subject string, d *dispatch.Dispatcher, cfg SubscribeConfig) (*nats.Subscription, error) {
	return js.QueueSubscribe(subject, cfg.Queue, func(msg *nats.Msg) {
		ctx := context.Background()
		if msg.Header != nil {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
		}

		var attempt uint64 = 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = meta.NumDelivered
		}

		switch d.Dispatch(ctx, dispatch.Delivery{Subject: msg.Subject, Data: msg.Data, Attempt: attempt}) {
		case dispatch.Ack:
			_ = msg.Ack()
		case dispatch.Term:
			_ = msg.Term()
		case dispatch.NakDelay:
			_ = msg.NakWithDelay(cfg.NotFoundDelay)
		default:
			_ = msg.Nak()
		}
	},
		nats.ManualAck(),
		nats.Durable(cfg.Queue),
		nats.DeliverAll(),
		nats.AckWait(cfg.AckWait),
		nats.MaxDeliver(cfg.MaxDeliver),
	)
}

// SubscribeRoutes opens one durable subscription per message type routed on d.
// Durable names are cfg.Queue suffixed with the subject kind.
func SubscribeRoutes(js nats.JetStreamContext, d *dispatch.Dispatcher, cfg SubscribeConfig) ([]*nats.Subscription, error) {
	var subs []*nats.Subscription
	for _, messageType := range d.Types() {
		kind, ok := sharding.KindFor(messageType)
		if !ok {
			unsubscribeAll(subs)
			return nil, fmt.Errorf("no subject kind for message type %q", messageType)
		}
		kindCfg := cfg
		kindCfg.Queue = DurableName(cfg.Queue, kind)
		sub, err := Subscribe(js, sharding.KindFilter(kind), d, kindCfg)
		if err != nil {
			unsubscribeAll(subs)
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// DurableName derives a per-kind consumer name from the service queue.
func DurableName(queue, kind string) string {
	return queue + "-" + kind
}

func unsubscribeAll(subs []*nats.Subscription) {
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
}

package dispatch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/platform/metrics"
	"github.com/auction-sync/project/internal/projection"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Outcome tells the delivery layer what to do with a message. Retries and
// dead-lettering belong to the broker; the dispatcher only classifies.
type Outcome string

const (
	Ack Outcome = "ack"
	// Nak asks for immediate redelivery.
	Nak Outcome = "nak"
	// NakDelay asks for redelivery after a pause so a causally earlier
	// event can land first.
	NakDelay Outcome = "nak_delay"
	// Term stops redelivery; the broker emits a dead-letter advisory.
	Term Outcome = "term"
)

const DefaultTimeout = 3 * time.Second

var (
	eventsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "auction_sync_events_total",
		Help: "Consumed auction events by message type and outcome.",
	}, []string{"message_type", "outcome"})
	handleSeconds = metrics.NewHistogramVec(metrics.Opts{
		Name: "auction_sync_handle_seconds",
		Help: "Event handler latency in seconds.",
	}, []string{"message_type"}, nil)
	inflight = metrics.NewGauge(metrics.Opts{
		Name: "auction_sync_inflight_handlers",
		Help: "Event handlers currently running.",
	})
)

func init() {
	metrics.Default.MustRegister(eventsTotal, handleSeconds, inflight)
}

// HandlerFunc applies one decoded envelope.
type HandlerFunc func(ctx context.Context, env contracts.Envelope) error

// Delivery is one broker message as seen by the dispatcher.
type Delivery struct {
	Subject string
	Data    []byte
	Attempt uint64
}

type Dispatcher struct {
	Logger  *zap.Logger
	Timeout time.Duration

	routes map[string]HandlerFunc
	tracer trace.Tracer
}

func New(logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		Logger:  logger,
		Timeout: timeout,
		routes:  map[string]HandlerFunc{},
		tracer:  otel.Tracer("github.com/auction-sync/project/internal/dispatch"),
	}
}

// Handle routes messageType to h, replacing any earlier route.
func (d *Dispatcher) Handle(messageType string, h HandlerFunc) {
	d.routes[messageType] = h
}

// Types lists the routed message types in a stable order.
func (d *Dispatcher) Types() []string {
	types := make([]string, 0, len(d.routes))
	for t := range d.routes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs decode, handler and classification for one delivery. It
// never panics on bad input and never retries.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Delivery) Outcome {
	log := d.Logger.With(zap.String("subject", msg.Subject), zap.Uint64("attempt", msg.Attempt))

	env, err := contracts.DecodeEnvelope(msg.Data)
	if err != nil {
		log.Warn("discarding undecodable envelope", zap.Error(err))
		eventsTotal.WithLabelValues("unknown", string(Term)).Inc()
		return Term
	}
	log = log.With(
		zap.String("message_id", env.MessageID),
		zap.String("message_type", env.MessageType),
		zap.String("correlation_id", env.CorrelationID),
	)

	handler, ok := d.routes[env.MessageType]
	if !ok {
		log.Warn("discarding unrouted message type")
		eventsTotal.WithLabelValues(env.MessageType, string(Term)).Inc()
		return Term
	}

	ctx, span := d.tracer.Start(ctx, "consume "+env.MessageType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject),
			attribute.String("messaging.message.id", env.MessageID),
			attribute.Int64("messaging.delivery.attempt", int64(msg.Attempt)),
		),
	)
	defer span.End()

	handlerCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	inflight.Inc()
	start := time.Now()
	err = handler(handlerCtx, env)
	handleSeconds.Observe(time.Since(start).Seconds(), env.MessageType)
	inflight.Dec()

	outcome := Classify(err)
	span.SetAttributes(attribute.String("auction_sync.outcome", string(outcome)))
	eventsTotal.WithLabelValues(env.MessageType, string(outcome)).Inc()

	switch outcome {
	case Ack:
		log.Debug("event applied")
	case Term:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("discarding event", zap.Error(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("event handling failed, requesting redelivery", zap.String("outcome", string(outcome)), zap.Error(err))
	}
	return outcome
}

// Classify maps a handler error onto a delivery outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, contracts.ErrInvalidEnvelope),
		errors.Is(err, projection.ErrMalformedEvent):
		return Term
	case errors.Is(err, projection.ErrNotFound):
		return NakDelay
	default:
		return Nak
	}
}

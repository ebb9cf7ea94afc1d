package messaging

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	EventsStream   = "AUCTION_EVENTS"
	EventsSubjects = "auction.event.>"

	// Publishers stamp Nats-Msg-Id with the envelope id; JetStream drops
	// repeats inside this window.
	duplicateWindow = 2 * time.Minute
)

// StreamManager is the subset of nats.JetStreamContext needed to provision
// streams.
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStreams creates (or validates) the auction event stream.
func EnsureStreams(js StreamManager) error {
	if _, err := js.StreamInfo(EventsStream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return err
		}
		if _, addErr := js.AddStream(EventsStreamConfig()); addErr != nil {
			return addErr
		}
	}
	return nil
}

func EventsStreamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       EventsStream,
		Subjects:   []string{EventsSubjects},
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		Replicas:   1,
		Duplicates: duplicateWindow,
	}
}

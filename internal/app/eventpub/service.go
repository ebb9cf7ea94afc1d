package eventpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/sharding"
	"github.com/nats-io/nuid"
)

// ErrMissingAuctionID rejects events that cannot be routed to a shard.
var ErrMissingAuctionID = errors.New("event has no auctionId")

// PublishFunc delivers payload on subject using msgID as the broker dedup key.
type PublishFunc func(ctx context.Context, subject, msgID string, payload []byte) error

// Service wraps domain events in envelopes and publishes them on the shard
// subject of their auction.
type Service struct {
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string
}

func NewService(publish PublishFunc) *Service {
	return &Service{
		Publish: publish,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

// Published describes one envelope that was handed to the broker.
type Published struct {
	Subject  string
	Envelope contracts.Envelope
}

func (s *Service) AuctionCreated(ctx context.Context, correlationID string, ev contracts.AuctionCreated) (Published, error) {
	return s.publish(ctx, sharding.KindAuctionCreated, contracts.TypeAuctionCreated, correlationID, ev.AuctionID, ev)
}

func (s *Service) BidPlaced(ctx context.Context, correlationID string, ev contracts.BidPlaced) (Published, error) {
	return s.publish(ctx, sharding.KindBidPlaced, contracts.TypeBidPlaced, correlationID, ev.AuctionID, ev)
}

func (s *Service) AuctionFinished(ctx context.Context, correlationID string, ev contracts.AuctionFinished) (Published, error) {
	return s.publish(ctx, sharding.KindAuctionFinished, contracts.TypeAuctionFinished, correlationID, ev.AuctionID, ev)
}

// Republish sends an existing envelope again under the same messageId,
// which the broker deduplicates inside its window.
func (s *Service) Republish(ctx context.Context, subject string, env contracts.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Publish(ctx, subject, env.MessageID, payload)
}

func (s *Service) publish(ctx context.Context, kind, messageType, correlationID, auctionID string, message any) (Published, error) {
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return Published{}, ErrMissingAuctionID
	}
	env, err := contracts.NewEnvelope(s.NewID(), messageType, correlationID, s.Now(), message)
	if err != nil {
		return Published{}, fmt.Errorf("build %s envelope: %w", messageType, err)
	}
	subject := sharding.GetSubject(kind, auctionID)
	if err := s.Republish(ctx, subject, env); err != nil {
		return Published{}, fmt.Errorf("publish %s for %s: %w", messageType, auctionID, err)
	}
	return Published{Subject: subject, Envelope: env}, nil
}

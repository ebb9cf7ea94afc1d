package searchsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/dispatch"
	"github.com/auction-sync/project/internal/projection"
	"go.uber.org/zap"
)

// ErrStaleRecord is returned by Save when the row changed after it was read.
var ErrStaleRecord = errors.New("search item changed since it was read")

// Store is the search index persistence port. FindByID returns
// projection.ErrNotFound for unknown ids; Save fails with ErrStaleRecord when
// rec.Version is outdated and with projection.ErrNotFound when the row is
// gone; Create reports false if the row already existed.
type Store interface {
	FindByID(ctx context.Context, auctionID string) (projection.SearchIndexRecord, error)
	Save(ctx context.Context, rec projection.SearchIndexRecord) error
	Create(ctx context.Context, rec projection.SearchIndexRecord) (bool, error)
}

type Service struct {
	Store  Store
	Logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Logger: logger}
}

// Register routes the search service's events on d.
func (s *Service) Register(d *dispatch.Dispatcher) {
	d.Handle(contracts.TypeAuctionCreated, s.HandleAuctionCreated)
	d.Handle(contracts.TypeBidPlaced, s.HandleBidPlaced)
}

// HandleBidPlaced raises the indexed high bid when an accepted bid beats it.
// Nothing is written otherwise.
func (s *Service) HandleBidPlaced(ctx context.Context, env contracts.Envelope) error {
	var ev contracts.BidPlaced
	if err := env.Decode(&ev); err != nil {
		return projection.Malformed("decode BidPlaced: " + err.Error())
	}
	auctionID := strings.TrimSpace(ev.AuctionID)
	if auctionID == "" {
		return projection.Malformed("BidPlaced without auctionId")
	}
	ev.AuctionID = auctionID

	rec, err := s.Store.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, projection.ErrNotFound) {
			return projection.NotFound(auctionID)
		}
		return fmt.Errorf("load search item %s: %w", auctionID, err)
	}

	previous := rec.CurrentHighBid
	changed, err := projection.ApplyBidPlaced(&rec, ev)
	if err != nil {
		return err
	}
	if !changed {
		s.Logger.Debug("bid does not raise high bid",
			zap.String("auction_id", auctionID),
			zap.String("bid_status", string(ev.BidStatus)),
			zap.Stringer("current_high_bid", rec.CurrentHighBid),
		)
		return nil
	}

	if err := s.Store.Save(ctx, rec); err != nil {
		if errors.Is(err, projection.ErrNotFound) {
			return projection.NotFound(auctionID)
		}
		return projection.PersistFailure(err)
	}
	s.Logger.Info("high bid raised",
		zap.String("auction_id", auctionID),
		zap.String("bidder_id", ev.BidderID),
		zap.Stringer("previous_high_bid", previous),
		zap.Stringer("current_high_bid", rec.CurrentHighBid),
	)
	return nil
}

// HandleAuctionCreated seeds the search row. Duplicates are no-ops.
func (s *Service) HandleAuctionCreated(ctx context.Context, env contracts.Envelope) error {
	var ev contracts.AuctionCreated
	if err := env.Decode(&ev); err != nil {
		return projection.Malformed("decode AuctionCreated: " + err.Error())
	}
	rec, err := projection.NewSearchIndexRecord(ev)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = env.SentAt.UTC()
		rec.UpdatedAt = rec.CreatedAt
	}

	created, err := s.Store.Create(ctx, rec)
	if err != nil {
		return projection.PersistFailure(err)
	}
	if created {
		s.Logger.Info("search item created", zap.String("auction_id", rec.ID))
	}
	return nil
}

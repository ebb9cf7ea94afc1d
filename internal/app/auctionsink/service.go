package auctionsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/dispatch"
	"github.com/auction-sync/project/internal/platform/metrics"
	"github.com/auction-sync/project/internal/projection"
	"go.uber.org/zap"
)

var outcomeOverwrites = metrics.NewCounterVec(metrics.Opts{
	Name: "auction_sync_outcome_overwrites_total",
	Help: "AuctionFinished events that replaced an already concluded outcome.",
}, []string{"previous_status", "status"})

func init() {
	metrics.Default.MustRegister(outcomeOverwrites)
}

// ErrStaleRecord is returned by Save when the row changed after it was read.
var ErrStaleRecord = errors.New("auction record changed since it was read")

// Store is the auction service's persistence port. FindByID returns
// projection.ErrNotFound for unknown ids. Save writes the terminal fields in
// one statement and fails with ErrStaleRecord if rec.Version is outdated.
// Insert leaves an existing row untouched.
type Store interface {
	FindByID(ctx context.Context, auctionID string) (projection.AuctionRecord, error)
	Save(ctx context.Context, rec projection.AuctionRecord) error
	Insert(ctx context.Context, rec projection.AuctionRecord) error
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

// Register routes the auction service's events on d.
func (s *Service) Register(d *dispatch.Dispatcher) {
	d.Handle(contracts.TypeAuctionCreated, s.HandleAuctionCreated)
	d.Handle(contracts.TypeAuctionFinished, s.HandleAuctionFinished)
}

// HandleAuctionCreated opens a Live auction row. Redelivery is a no-op.
func (s *Service) HandleAuctionCreated(ctx context.Context, env contracts.Envelope) error {
	var ev contracts.AuctionCreated
	if err := env.Decode(&ev); err != nil {
		return projection.Malformed("decode AuctionCreated: " + err.Error())
	}
	auctionID := strings.TrimSpace(ev.AuctionID)
	if auctionID == "" {
		return projection.Malformed("AuctionCreated without auctionId")
	}
	if ev.ReservePrice.IsNegative() {
		return projection.Malformed("negative reservePrice " + ev.ReservePrice.String())
	}

	rec := projection.AuctionRecord{ID: auctionID, Status: projection.StatusLive, ReservePrice: ev.ReservePrice}
	if err := s.Store.Insert(ctx, rec); err != nil {
		return projection.PersistFailure(err)
	}
	s.Logger.Debug("auction opened", zap.String("auction_id", auctionID), zap.Stringer("reserve_price", ev.ReservePrice))
	return nil
}

// HandleAuctionFinished settles the auction record: lookup, project, and
// save when the projection changed anything.
func (s *Service) HandleAuctionFinished(ctx context.Context, env contracts.Envelope) error {
	var ev contracts.AuctionFinished
	if err := env.Decode(&ev); err != nil {
		return projection.Malformed("decode AuctionFinished: " + err.Error())
	}
	auctionID := strings.TrimSpace(ev.AuctionID)
	if auctionID == "" {
		return projection.Malformed("AuctionFinished without auctionId")
	}
	ev.AuctionID = auctionID

	rec, err := s.Store.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, projection.ErrNotFound) {
			return projection.NotFound(auctionID)
		}
		return fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	previous := rec
	changed, err := projection.ApplyAuctionFinished(&rec, ev)
	if err != nil {
		return err
	}
	if !changed {
		s.Logger.Debug("auction already settled", zap.String("auction_id", auctionID), zap.String("status", string(rec.Status)))
		return nil
	}

	if err := s.Store.Save(ctx, rec); err != nil {
		return projection.PersistFailure(err)
	}
	if previous.Status.Terminal() {
		outcomeOverwrites.WithLabelValues(string(previous.Status), string(rec.Status)).Inc()
		s.Logger.Warn("concluded auction outcome overwritten",
			zap.String("auction_id", auctionID),
			zap.String("message_id", env.MessageID),
			zap.String("previous_status", string(previous.Status)),
			zap.Stringp("previous_winner", previous.Winner),
			zap.String("status", string(rec.Status)),
			zap.Stringp("winner", rec.Winner),
		)
		return nil
	}
	s.Logger.Info("auction settled",
		zap.String("auction_id", auctionID),
		zap.String("status", string(rec.Status)),
		zap.Bool("item_sold", ev.ItemSold),
	)
	return nil
}

package projection

import (
	"strings"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/shopspring/decimal"
)

// ApplyBidPlaced folds an accepted bid into the search row as a max-merge:
// redelivered and stale bids leave the row untouched. It reports whether the
// row changed and must be saved.
func ApplyBidPlaced(rec *SearchIndexRecord, ev contracts.BidPlaced) (bool, error) {
	if err := checkTarget(rec.ID, ev.AuctionID); err != nil {
		return false, err
	}
	if !ev.BidStatus.IsAccepted() {
		return false, nil
	}
	if ev.BidAmount == nil {
		return false, Malformed("accepted bid without bidAmount")
	}
	if ev.BidAmount.IsNegative() {
		return false, Malformed("negative bidAmount " + ev.BidAmount.String())
	}
	if !ev.BidAmount.GreaterThan(rec.CurrentHighBid) {
		return false, nil
	}
	rec.CurrentHighBid = *ev.BidAmount
	return true, nil
}

// ApplyAuctionFinished records the sale (if any) and recomputes the terminal
// status from scratch, so redelivery reproduces the same record. A sale
// overwrites any earlier winner and amount; an unsold finish leaves them.
func ApplyAuctionFinished(rec *AuctionRecord, ev contracts.AuctionFinished) (bool, error) {
	if err := checkTarget(rec.ID, ev.AuctionID); err != nil {
		return false, err
	}

	winner, soldAmount := rec.Winner, rec.SoldAmount
	if ev.ItemSold {
		if ev.WinnerID == nil || strings.TrimSpace(*ev.WinnerID) == "" {
			return false, Malformed("sold auction without winnerId")
		}
		if ev.Amount == nil {
			return false, Malformed("sold auction without amount")
		}
		if ev.Amount.IsNegative() {
			return false, Malformed("negative sold amount " + ev.Amount.String())
		}
		w, a := *ev.WinnerID, *ev.Amount
		winner, soldAmount = &w, &a
	}
	status := ResolveStatus(soldAmount, rec.ReservePrice)

	same := rec.Status == status && equalString(rec.Winner, winner) && equalDecimal(rec.SoldAmount, soldAmount)
	if same {
		return false, nil
	}

	rec.Winner = winner
	rec.SoldAmount = soldAmount
	rec.Status = status
	return true, nil
}

// NewSearchIndexRecord seeds a search row from the creation event.
func NewSearchIndexRecord(ev contracts.AuctionCreated) (SearchIndexRecord, error) {
	id := strings.TrimSpace(ev.AuctionID)
	if id == "" {
		return SearchIndexRecord{}, Malformed("missing auctionId")
	}
	if ev.ReservePrice.IsNegative() {
		return SearchIndexRecord{}, Malformed("negative reservePrice " + ev.ReservePrice.String())
	}
	return SearchIndexRecord{
		ID:           id,
		ReservePrice: ev.ReservePrice,
		Seller:       ev.Seller,
		Make:         ev.Make,
		Model:        ev.Model,
		Year:         ev.Year,
		CreatedAt:    ev.CreatedAt.UTC(),
		UpdatedAt:    ev.CreatedAt.UTC(),
	}, nil
}

func checkTarget(recordID, eventAuctionID string) error {
	if strings.TrimSpace(eventAuctionID) == "" {
		return Malformed("missing auctionId")
	}
	if recordID != eventAuctionID {
		return Malformed("event for auction " + eventAuctionID + " applied to " + recordID)
	}
	return nil
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

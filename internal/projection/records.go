package projection

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusLive          Status = "Live"
	StatusFinished      Status = "Finished"
	StatusReserveNotMet Status = "ReserveNotMet"
)

// Terminal reports whether the auction has concluded.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusReserveNotMet
}

// AuctionRecord is the auction service's source-of-truth row. Winner and
// SoldAmount are either both set or both nil.
type AuctionRecord struct {
	ID             string
	Status         Status
	ReservePrice   decimal.Decimal
	CurrentHighBid decimal.Decimal
	Winner         *string
	SoldAmount     *decimal.Decimal
	Version        int64
}

// SearchIndexRecord is the search service's denormalized auction row.
// CurrentHighBid never decreases.
type SearchIndexRecord struct {
	ID             string
	CurrentHighBid decimal.Decimal
	ReservePrice   decimal.Decimal
	Seller         string
	Make           string
	Model          string
	Year           int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
}

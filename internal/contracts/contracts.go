package contracts

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Message types carried in Envelope.MessageType.
const (
	TypeAuctionCreated  = "AuctionCreated"
	TypeBidPlaced       = "BidPlaced"
	TypeAuctionFinished = "AuctionFinished"
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the wire wrapper published by the auction service outbox.
// Delivery is at-least-once with no ordering across auctions, and none
// across message types for the same auction.
type Envelope struct {
	MessageID     string          `json:"messageId"`
	MessageType   string          `json:"messageType"`
	CorrelationID string          `json:"correlationId,omitempty"`
	SentAt        time.Time       `json:"sentAt"`
	Message       json.RawMessage `json:"message"`
}

// BidStatus is the bidding service's verdict on a bid.
type BidStatus string

const (
	BidAccepted             BidStatus = "Accepted"
	BidAcceptedBelowReserve BidStatus = "AcceptedBelowReserve"
	BidTooLow               BidStatus = "TooLow"
	BidFinished             BidStatus = "Finished"
)

// IsAccepted reports whether the bid was taken by the auction. Values outside
// the known set are never accepted.
func (s BidStatus) IsAccepted() bool {
	switch s {
	case BidAccepted, BidAcceptedBelowReserve:
		return true
	default:
		return false
	}
}

type BidPlaced struct {
	AuctionID string           `json:"auctionId"`
	BidAmount *decimal.Decimal `json:"bidAmount"`
	BidStatus BidStatus        `json:"bidStatus"`
	BidderID  string           `json:"bidderId"`
}

type AuctionFinished struct {
	AuctionID string           `json:"auctionId"`
	ItemSold  bool             `json:"itemSold"`
	WinnerID  *string          `json:"winnerId,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// AuctionCreated seeds the search index row for a new auction.
type AuctionCreated struct {
	AuctionID    string          `json:"auctionId"`
	ReservePrice decimal.Decimal `json:"reservePrice"`
	Seller       string          `json:"seller"`
	Make         string          `json:"make"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func NewEnvelope(messageID, messageType, correlationID string, sentAt time.Time, message any) (Envelope, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MessageID:     messageID,
		MessageType:   messageType,
		CorrelationID: correlationID,
		SentAt:        sentAt,
		Message:       raw,
	}, nil
}

// DecodeEnvelope parses a broker payload. The message body is left raw for
// the type-specific handler.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrInvalidEnvelope
	}
	env.MessageType = strings.TrimSpace(env.MessageType)
	if env.MessageType == "" || len(env.Message) == 0 {
		return Envelope{}, ErrInvalidEnvelope
	}
	return env, nil
}

// Decode unmarshals the envelope body into target.
func (e Envelope) Decode(target any) error {
	return json.Unmarshal(e.Message, target)
}

package eventpub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/shopspring/decimal"
)

type sent struct {
	subject string
	msgID   string
	payload []byte
}

func newTestService(out *[]sent) *Service {
	svc := NewService(func(_ context.Context, subject, msgID string, payload []byte) error {
		*out = append(*out, sent{subject: subject, msgID: msgID, payload: payload})
		return nil
	})
	svc.NewID = func() string { return "evt-1" }
	svc.Now = func() time.Time { return time.Date(2026, 2, 9, 22, 0, 0, 0, time.UTC) }
	return svc
}

func TestBidPlaced_PublishesOnShardSubject(t *testing.T) {
	var out []sent
	svc := newTestService(&out)
	amount := decimal.NewFromInt(75)

	pub, err := svc.BidPlaced(context.Background(), "corr-1", contracts.BidPlaced{
		AuctionID: "auction-1", BidAmount: &amount, BidStatus: contracts.BidAccepted, BidderID: "bob",
	})
	if err != nil {
		t.Fatalf("BidPlaced returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one publish, got %d", len(out))
	}
	if out[0].subject != "auction.event.388.bid-placed.auction-1" || pub.Subject != out[0].subject {
		t.Fatalf("unexpected subject %q", out[0].subject)
	}
	if out[0].msgID != "evt-1" {
		t.Fatalf("expected messageId as dedup key, got %q", out[0].msgID)
	}

	env, err := contracts.DecodeEnvelope(out[0].payload)
	if err != nil {
		t.Fatalf("payload is not an envelope: %v", err)
	}
	if env.MessageID != "evt-1" || env.MessageType != contracts.TypeBidPlaced || env.CorrelationID != "corr-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var ev contracts.BidPlaced
	if err := env.Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.BidAmount == nil || !ev.BidAmount.Equal(amount) {
		t.Fatalf("unexpected bid amount %v", ev.BidAmount)
	}
}

func TestAuctionFinishedAndCreated_Subjects(t *testing.T) {
	var out []sent
	svc := newTestService(&out)

	if _, err := svc.AuctionCreated(context.Background(), "", contracts.AuctionCreated{AuctionID: "auction-2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AuctionFinished(context.Background(), "", contracts.AuctionFinished{AuctionID: "auction-2"}); err != nil {
		t.Fatal(err)
	}
	if out[0].subject != "auction.event.62.auction-created.auction-2" {
		t.Fatalf("unexpected created subject %q", out[0].subject)
	}
	if out[1].subject != "auction.event.62.auction-finished.auction-2" {
		t.Fatalf("unexpected finished subject %q", out[1].subject)
	}
}

func TestPublish_MissingAuctionID(t *testing.T) {
	var out []sent
	svc := newTestService(&out)

	_, err := svc.AuctionFinished(context.Background(), "", contracts.AuctionFinished{AuctionID: " "})
	if !errors.Is(err, ErrMissingAuctionID) {
		t.Fatalf("expected ErrMissingAuctionID, got %v", err)
	}
	if len(out) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestPublish_BrokerError(t *testing.T) {
	boom := errors.New("no responders")
	svc := NewService(func(context.Context, string, string, []byte) error { return boom })

	_, err := svc.AuctionCreated(context.Background(), "", contracts.AuctionCreated{AuctionID: "auction-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestRepublish_KeepsMessageID(t *testing.T) {
	var out []sent
	svc := newTestService(&out)
	pub, err := svc.AuctionCreated(context.Background(), "", contracts.AuctionCreated{AuctionID: "auction-1"})
	if err != nil {
		t.Fatal(err)
	}
	svc.NewID = func() string { return "evt-2" }

	if err := svc.Republish(context.Background(), pub.Subject, pub.Envelope); err != nil {
		t.Fatal(err)
	}
	if out[1].msgID != "evt-1" || out[1].subject != out[0].subject {
		t.Fatalf("republish changed identity: %+v", out[1])
	}
}

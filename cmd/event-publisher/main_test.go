package main

import (
	"context"
	"testing"

	"github.com/auction-sync/project/internal/app/eventpub"
	"github.com/auction-sync/project/internal/contracts"
)

func TestPublish_FinishedSold(t *testing.T) {
	var subject string
	svc := eventpub.NewService(func(_ context.Context, s, _ string, _ []byte) error {
		subject = s
		return nil
	})

	pub, err := publish(context.Background(), svc, flags{kind: "finished", auctionID: "auction-1", sold: true, winner: "bob", amount: "2500"})
	if err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if subject != "auction.event.388.auction-finished.auction-1" {
		t.Fatalf("unexpected subject %q", subject)
	}
	var ev contracts.AuctionFinished
	if err := pub.Envelope.Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if !ev.ItemSold || ev.WinnerID == nil || *ev.WinnerID != "bob" || ev.Amount == nil || ev.Amount.String() != "2500" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublish_Errors(t *testing.T) {
	svc := eventpub.NewService(func(context.Context, string, string, []byte) error { return nil })

	for _, f := range []flags{
		{kind: "retract", auctionID: "auction-1"},
		{kind: "bid", auctionID: "auction-1", amount: "lots"},
		{kind: "created", auctionID: "auction-1", reserve: "?"},
	} {
		if _, err := publish(context.Background(), svc, f); err == nil {
			t.Fatalf("expected error for %+v", f)
		}
	}
}

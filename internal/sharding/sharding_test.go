package sharding

import (
	"fmt"
	"testing"
)

func TestGetShardID(t *testing.T) {
	tests := []struct {
		auctionID string
		want      int
	}{
		{"auction-1", 388},
		{"auction-2", 62},
		{"afbee524-5972-4075-8800-7d1f9d7b0a0c", 820},
	}

	for _, tt := range tests {
		t.Run(tt.auctionID, func(t *testing.T) {
			if got := GetShardID(tt.auctionID); got != tt.want {
				t.Errorf("GetShardID(%q) = %v, want %v", tt.auctionID, got, tt.want)
			}
		})
	}
}

func TestGetSubject(t *testing.T) {
	subject := GetSubject(KindBidPlaced, "auction-1")
	expected := "auction.event.388.bid-placed.auction-1"
	if subject != expected {
		t.Errorf("GetSubject = %v, want %v", subject, expected)
	}
}

func TestKindFilter(t *testing.T) {
	if got := KindFilter(KindAuctionFinished); got != "auction.event.*.auction-finished.*" {
		t.Errorf("KindFilter = %v", got)
	}
}

func TestKindFor(t *testing.T) {
	if kind, ok := KindFor("BidPlaced"); !ok || kind != KindBidPlaced {
		t.Errorf("KindFor(BidPlaced) = %q, %v", kind, ok)
	}
	if kind, ok := KindFor("AuctionFinished"); !ok || kind != KindAuctionFinished {
		t.Errorf("KindFor(AuctionFinished) = %q, %v", kind, ok)
	}
	if _, ok := KindFor("BidRetracted"); ok {
		t.Error("unknown message types must not map to a kind")
	}
}

func TestDistribution(t *testing.T) {
	// Rough check to ensure we don't map everything to shard 0
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		shard := GetShardID(fmt.Sprintf("auction-%d", i))
		distribution[shard]++
	}

	if len(distribution) < 100 {
		t.Errorf("Sharding distribution is too poor. Only %d unique shards used for 1000 keys", len(distribution))
	}
}

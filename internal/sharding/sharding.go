package sharding

import (
	"fmt"
	"hash/crc32"

	"github.com/auction-sync/project/internal/contracts"
)

// ShardCount is the fixed number of subject partitions.
const ShardCount = 1024

// Subject kinds, one per event contract.
const (
	KindAuctionCreated  = "auction-created"
	KindBidPlaced       = "bid-placed"
	KindAuctionFinished = "auction-finished"
)

// GetShardID calculates the deterministic shard ID for an auction ID.
func GetShardID(auctionID string) int {
	checksum := crc32.ChecksumIEEE([]byte(auctionID))
	return int(checksum % ShardCount)
}

// GetSubject returns the NATS subject an auction event is published on.
// Format: auction.event.{shard_id}.{kind}.{auction_id}
func GetSubject(kind, auctionID string) string {
	return fmt.Sprintf("auction.event.%d.%s.%s", GetShardID(auctionID), kind, auctionID)
}

// KindFilter matches every shard and auction for one event kind.
func KindFilter(kind string) string {
	return "auction.event.*." + kind + ".*"
}

// KindFor maps an envelope messageType onto its subject kind.
func KindFor(messageType string) (string, bool) {
	switch messageType {
	case contracts.TypeAuctionCreated:
		return KindAuctionCreated, true
	case contracts.TypeBidPlaced:
		return KindBidPlaced, true
	case contracts.TypeAuctionFinished:
		return KindAuctionFinished, true
	default:
		return "", false
	}
}

// Command event-publisher emits auction events onto the bus for local runs.
//
//	event-publisher -type created  -auction a1 -reserve 2000
//	event-publisher -type bid      -auction a1 -amount 2500 -status Accepted -bidder bob
//	event-publisher -type finished -auction a1 -sold -winner bob -amount 2500
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auction-sync/project/internal/app/eventpub"
	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/platform/env"
	"github.com/auction-sync/project/internal/platform/logger"
	"github.com/auction-sync/project/internal/platform/natsutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type flags struct {
	kind        string
	auctionID   string
	correlation string
	amount      string
	reserve     string
	status      string
	bidder      string
	winner      string
	sold        bool
	repeat      int
}

func main() {
	var f flags
	flag.StringVar(&f.kind, "type", "bid", "event to publish: created, bid or finished")
	flag.StringVar(&f.auctionID, "auction", "", "auction id")
	flag.StringVar(&f.correlation, "correlation", "", "correlation id")
	flag.StringVar(&f.amount, "amount", "", "bid or sale amount")
	flag.StringVar(&f.reserve, "reserve", "0", "reserve price for created events")
	flag.StringVar(&f.status, "status", string(contracts.BidAccepted), "bid status")
	flag.StringVar(&f.bidder, "bidder", "", "bidder id")
	flag.StringVar(&f.winner, "winner", "", "winner id for sold auctions")
	flag.BoolVar(&f.sold, "sold", false, "whether the finished auction sold")
	flag.IntVar(&f.repeat, "repeat", 1, "publish the same envelope this many times")
	flag.Parse()

	var cfg env.Common
	if err := env.Load(&cfg); err != nil {
		log.Fatal(err)
	}
	logr, err := logger.New("event-publisher", cfg.LogLevel, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, cfg.NATSConnectWait)
	if err != nil {
		logr.Fatal("connect nats", zap.Error(err))
	}
	defer client.Close()

	svc := eventpub.NewService(natsutil.JetStreamPublisher{JS: client.JS}.Publish)
	pub, err := publish(ctx, svc, f)
	if err != nil {
		logr.Fatal("publish", zap.Error(err))
	}
	logr.Info("published",
		zap.String("subject", pub.Subject),
		zap.String("message_id", pub.Envelope.MessageID),
		zap.String("message_type", pub.Envelope.MessageType),
	)

	for i := 1; i < f.repeat; i++ {
		if err := svc.Republish(ctx, pub.Subject, pub.Envelope); err != nil {
			logr.Fatal("republish", zap.Int("attempt", i+1), zap.Error(err))
		}
	}
}

func publish(ctx context.Context, svc *eventpub.Service, f flags) (eventpub.Published, error) {
	switch f.kind {
	case "created":
		reserve, err := decimal.NewFromString(f.reserve)
		if err != nil {
			return eventpub.Published{}, fmt.Errorf("reserve: %w", err)
		}
		return svc.AuctionCreated(ctx, f.correlation, contracts.AuctionCreated{
			AuctionID:    f.auctionID,
			ReservePrice: reserve,
			CreatedAt:    time.Now().UTC(),
		})
	case "bid":
		amount, err := optionalAmount(f.amount)
		if err != nil {
			return eventpub.Published{}, err
		}
		return svc.BidPlaced(ctx, f.correlation, contracts.BidPlaced{
			AuctionID: f.auctionID,
			BidAmount: amount,
			BidStatus: contracts.BidStatus(f.status),
			BidderID:  f.bidder,
		})
	case "finished":
		ev := contracts.AuctionFinished{AuctionID: f.auctionID, ItemSold: f.sold}
		if f.sold {
			amount, err := optionalAmount(f.amount)
			if err != nil {
				return eventpub.Published{}, err
			}
			winner := f.winner
			ev.WinnerID, ev.Amount = &winner, amount
		}
		return svc.AuctionFinished(ctx, f.correlation, ev)
	default:
		return eventpub.Published{}, fmt.Errorf("unknown event type %q", f.kind)
	}
}

func optionalAmount(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return &d, nil
}

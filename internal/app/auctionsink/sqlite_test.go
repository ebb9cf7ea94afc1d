package auctionsink

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/auction-sync/project/internal/contracts"
	"github.com/auction-sync/project/internal/projection"
	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Insert(ctx, projection.AuctionRecord{
		ID:             "auction-1",
		ReservePrice:   decimal.RequireFromString("2000.50"),
		CurrentHighBid: decimal.RequireFromString("1500"),
	}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	rec, err := store.FindByID(ctx, "auction-1")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if rec.Status != projection.StatusLive || !rec.ReservePrice.Equal(decimal.RequireFromString("2000.5")) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Winner != nil || rec.SoldAmount != nil || rec.Version != 0 {
		t.Fatalf("expected unsold record at version 0: %+v", rec)
	}
}

func TestSQLiteStore_FindMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.FindByID(context.Background(), "ghost"); !errors.Is(err, projection.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.Insert(ctx, liveAuction("auction-1", 100)); err != nil {
		t.Fatal(err)
	}

	first, _ := store.FindByID(ctx, "auction-1")
	second := first

	first.Status = projection.StatusFinished
	first.Winner = strptr("alice")
	first.SoldAmount = decptr(150)
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	second.Status = projection.StatusReserveNotMet
	if err := store.Save(ctx, second); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord for outdated version, got %v", err)
	}

	got, _ := store.FindByID(ctx, "auction-1")
	if got.Status != projection.StatusFinished || got.Version != 1 || *got.Winner != "alice" || !got.SoldAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

func TestSQLiteStore_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.Insert(ctx, liveAuction("auction-1", 100)); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, liveAuction("auction-1", 999)); err != nil {
		t.Fatalf("second Insert returned error: %v", err)
	}
	got, _ := store.FindByID(ctx, "auction-1")
	if !got.ReservePrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("second insert overwrote reserve price: %s", got.ReservePrice)
	}
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auctions.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if _, err := OpenSQLite(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestService_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.Insert(ctx, liveAuction("auction-1", 2000)); err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, nil)
	env := finishedEnvelope(t, contracts.AuctionFinished{
		AuctionID: "auction-1", ItemSold: true, WinnerID: strptr("alice"), Amount: decptr(2500),
	})

	for i := 0; i < 2; i++ {
		if err := svc.HandleAuctionFinished(ctx, env); err != nil {
			t.Fatalf("delivery %d returned error: %v", i+1, err)
		}
	}

	got, err := store.FindByID(ctx, "auction-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != projection.StatusFinished || got.Version != 1 {
		t.Fatalf("expected one settled write, got %+v", got)
	}
}

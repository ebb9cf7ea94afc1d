package auctionsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/auction-sync/project/internal/projection"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Amounts cross the driver boundary as text so NUMERIC keeps full precision
// without a decimal codec registration.
const createAuctionsTableSQL = `
CREATE TABLE IF NOT EXISTS auctions (
  id text PRIMARY KEY,
  status text NOT NULL DEFAULT 'Live',
  reserve_price numeric NOT NULL DEFAULT 0,
  current_high_bid numeric NOT NULL DEFAULT 0,
  winner text,
  sold_amount numeric,
  version bigint NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT now(),
  CONSTRAINT auctions_status_check CHECK (status IN ('Live', 'Finished', 'ReserveNotMet')),
  CONSTRAINT auctions_sale_pair_check CHECK ((winner IS NULL) = (sold_amount IS NULL))
)`

const selectAuctionSQL = `
SELECT id, status, reserve_price::text, current_high_bid::text, winner, sold_amount::text, version
FROM auctions
WHERE id = $1
`

const insertAuctionSQL = `
INSERT INTO auctions (id, status, reserve_price, current_high_bid, winner, sold_amount, version)
VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6::numeric, 0)
ON CONFLICT (id) DO NOTHING
`

const settleAuctionSQL = `
UPDATE auctions
SET status = $2,
    winner = $3,
    sold_amount = $4::numeric,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $5
`

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, createAuctionsTableSQL)
	return err
}

func (r *PostgresStore) FindByID(ctx context.Context, auctionID string) (projection.AuctionRecord, error) {
	var row auctionRow
	err := r.Pool.QueryRow(ctx, selectAuctionSQL, auctionID).Scan(
		&row.ID,
		&row.Status,
		&row.ReservePrice,
		&row.CurrentHighBid,
		&row.Winner,
		&row.SoldAmount,
		&row.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return projection.AuctionRecord{}, projection.ErrNotFound
		}
		return projection.AuctionRecord{}, err
	}
	return row.record()
}

func (r *PostgresStore) Save(ctx context.Context, rec projection.AuctionRecord) error {
	tag, err := r.Pool.Exec(ctx, settleAuctionSQL,
		rec.ID,
		string(rec.Status),
		rec.Winner,
		decimalText(rec.SoldAmount),
		rec.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}
	return nil
}

// Insert creates an auction row if it does not exist. The owning service
// normally does this; it is used for seeding and tests.
func (r *PostgresStore) Insert(ctx context.Context, rec projection.AuctionRecord) error {
	_, err := r.Pool.Exec(ctx, insertAuctionSQL, insertArgs(rec)...)
	return err
}

type auctionRow struct {
	ID             string
	Status         string
	ReservePrice   string
	CurrentHighBid string
	Winner         *string
	SoldAmount     *string
	Version        int64
}

func (row auctionRow) record() (projection.AuctionRecord, error) {
	reserve, err := decimal.NewFromString(row.ReservePrice)
	if err != nil {
		return projection.AuctionRecord{}, fmt.Errorf("auction %s reserve_price: %w", row.ID, err)
	}
	highBid, err := decimal.NewFromString(row.CurrentHighBid)
	if err != nil {
		return projection.AuctionRecord{}, fmt.Errorf("auction %s current_high_bid: %w", row.ID, err)
	}
	rec := projection.AuctionRecord{
		ID:             row.ID,
		Status:         projection.Status(row.Status),
		ReservePrice:   reserve,
		CurrentHighBid: highBid,
		Winner:         row.Winner,
		Version:        row.Version,
	}
	if row.SoldAmount != nil {
		sold, err := decimal.NewFromString(*row.SoldAmount)
		if err != nil {
			return projection.AuctionRecord{}, fmt.Errorf("auction %s sold_amount: %w", row.ID, err)
		}
		rec.SoldAmount = &sold
	}
	return rec, nil
}

func insertArgs(rec projection.AuctionRecord) []any {
	status := rec.Status
	if status == "" {
		status = projection.StatusLive
	}
	return []any{
		rec.ID,
		string(status),
		rec.ReservePrice.String(),
		rec.CurrentHighBid.String(),
		rec.Winner,
		decimalText(rec.SoldAmount),
	}
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

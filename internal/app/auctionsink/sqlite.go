package auctionsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/auction-sync/project/internal/projection"
	_ "modernc.org/sqlite"
)

const createAuctionsTableSQLite = `
CREATE TABLE IF NOT EXISTS auctions (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'Live' CHECK (status IN ('Live', 'Finished', 'ReserveNotMet')),
  reserve_price TEXT NOT NULL DEFAULT '0',
  current_high_bid TEXT NOT NULL DEFAULT '0',
  winner TEXT,
  sold_amount TEXT,
  version INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
  CHECK ((winner IS NULL) = (sold_amount IS NULL))
)`

// SQLiteStore is the single-node Store used for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" for a private in-memory database) and
// creates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, createAuctionsTableSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create auctions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) FindByID(ctx context.Context, auctionID string) (projection.AuctionRecord, error) {
	var row auctionRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, reserve_price, current_high_bid, winner, sold_amount, version
		 FROM auctions WHERE id = ?`,
		auctionID,
	).Scan(
		&row.ID,
		&row.Status,
		&row.ReservePrice,
		&row.CurrentHighBid,
		&row.Winner,
		&row.SoldAmount,
		&row.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return projection.AuctionRecord{}, projection.ErrNotFound
		}
		return projection.AuctionRecord{}, err
	}
	return row.record()
}

func (s *SQLiteStore) Save(ctx context.Context, rec projection.AuctionRecord) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE auctions
		 SET status = ?, winner = ?, sold_amount = ?, version = version + 1, updated_at = unixepoch()
		 WHERE id = ? AND version = ?`,
		string(rec.Status),
		rec.Winner,
		decimalText(rec.SoldAmount),
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleRecord
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec projection.AuctionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auctions (id, status, reserve_price, current_high_bid, winner, sold_amount, version)
		 VALUES (?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT (id) DO NOTHING`,
		insertArgs(rec)...,
	)
	return err
}

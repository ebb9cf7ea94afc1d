package searchsink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/auction-sync/project/internal/projection"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	fieldCurrentHighBid = "current_high_bid"
	fieldReservePrice   = "reserve_price"
	fieldSeller         = "seller"
	fieldMake           = "make"
	fieldModel          = "model"
	fieldYear           = "year"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldVersion        = "version"
)

// saveScript is a compare-and-set on the version field so a writer that read
// an older row cannot overwrite a newer one. It returns -1 for a missing key,
// 0 for a version mismatch and 1 on success.
var saveScript = redis.NewScript(`
	-- KEYS[1]: search:item:{auctionID}
	-- ARGV[1]: version the caller read
	-- ARGV[2]: new current high bid
	-- ARGV[3]: updated_at
	local version = redis.call('HGET', KEYS[1], 'version')
	if not version then
		return -1
	end
	if version ~= ARGV[1] then
		return 0
	end
	redis.call('HSET', KEYS[1],
		'current_high_bid', ARGV[2],
		'updated_at', ARGV[3],
		'version', tonumber(version) + 1)
	return 1
`)

// createScript writes the whole hash only if the key is absent.
var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1], unpack(ARGV))
	return 1
`)

type RedisStore struct {
	Client *redis.Client
	Now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		Client: client,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func itemKey(auctionID string) string {
	return "search:item:" + auctionID
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisStore) FindByID(ctx context.Context, auctionID string) (projection.SearchIndexRecord, error) {
	fields, err := r.Client.HGetAll(ctx, itemKey(auctionID)).Result()
	if err != nil {
		return projection.SearchIndexRecord{}, err
	}
	if len(fields) == 0 {
		return projection.SearchIndexRecord{}, projection.ErrNotFound
	}
	return recordFromHash(auctionID, fields)
}

func (r *RedisStore) Save(ctx context.Context, rec projection.SearchIndexRecord) error {
	res, err := saveScript.Run(ctx, r.Client, []string{itemKey(rec.ID)},
		strconv.FormatInt(rec.Version, 10),
		rec.CurrentHighBid.String(),
		r.Now().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("save search item %s: %w", rec.ID, err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return projection.ErrNotFound
	default:
		return ErrStaleRecord
	}
}

func (r *RedisStore) Create(ctx context.Context, rec projection.SearchIndexRecord) (bool, error) {
	res, err := createScript.Run(ctx, r.Client, []string{itemKey(rec.ID)}, hashFields(rec)...).Int()
	if err != nil {
		return false, fmt.Errorf("create search item %s: %w", rec.ID, err)
	}
	return res == 1, nil
}

// hashFields flattens rec into HSET arguments. Version always starts at 0.
func hashFields(rec projection.SearchIndexRecord) []any {
	return []any{
		fieldCurrentHighBid, rec.CurrentHighBid.String(),
		fieldReservePrice, rec.ReservePrice.String(),
		fieldSeller, rec.Seller,
		fieldMake, rec.Make,
		fieldModel, rec.Model,
		fieldYear, strconv.Itoa(rec.Year),
		fieldCreatedAt, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt, rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldVersion, "0",
	}
}

func recordFromHash(auctionID string, fields map[string]string) (projection.SearchIndexRecord, error) {
	rec := projection.SearchIndexRecord{
		ID:     auctionID,
		Seller: fields[fieldSeller],
		Make:   fields[fieldMake],
		Model:  fields[fieldModel],
	}
	var err error
	if rec.CurrentHighBid, err = parseDecimal(fields[fieldCurrentHighBid]); err != nil {
		return projection.SearchIndexRecord{}, fmt.Errorf("search item %s %s: %w", auctionID, fieldCurrentHighBid, err)
	}
	if rec.ReservePrice, err = parseDecimal(fields[fieldReservePrice]); err != nil {
		return projection.SearchIndexRecord{}, fmt.Errorf("search item %s %s: %w", auctionID, fieldReservePrice, err)
	}
	if rec.Version, err = strconv.ParseInt(fields[fieldVersion], 10, 64); err != nil {
		return projection.SearchIndexRecord{}, fmt.Errorf("search item %s %s: %w", auctionID, fieldVersion, err)
	}
	if raw := fields[fieldYear]; raw != "" {
		if rec.Year, err = strconv.Atoi(raw); err != nil {
			return projection.SearchIndexRecord{}, fmt.Errorf("search item %s %s: %w", auctionID, fieldYear, err)
		}
	}
	rec.CreatedAt = parseTime(fields[fieldCreatedAt])
	rec.UpdatedAt = parseTime(fields[fieldUpdatedAt])
	return rec, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

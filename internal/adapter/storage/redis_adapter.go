package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/core/domain"
)

const (
	auctionKeyPrefix = "auction:"
	closingIndexKey  = "auctions:closing"
)

var createAuctionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end

redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// returns -1 when the item is missing, 0 on a version mismatch and the
// updated hash on success
var conditionalUpdateScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
	return -1
end

if tonumber(current) ~= tonumber(ARGV[1]) then
	return 0
end

redis.call('HSET', KEYS[1],
	'current_bid', ARGV[2],
	'highest_bidder', ARGV[3],
	'is_closed', ARGV[4],
	'updated_at', ARGV[5])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return redis.call('HGETALL', KEYS[1])
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Get(ctx context.Context, id string) (domain.AuctionItem, error) {
	fields, err := r.client.HGetAll(ctx, auctionKeyPrefix+id).Result()
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("hgetall auction: %w", err)
	}
	if len(fields) == 0 {
		return domain.AuctionItem{}, domain.ErrNotFound
	}
	return decodeAuctionHash(fields)
}

func (r *RedisAdapter) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.AuctionItem) (domain.AuctionItem, error) {
	res, err := conditionalUpdateScript.Run(ctx, r.client, []string{auctionKeyPrefix + id},
		expectedVersion,
		next.CurrentBid.String(),
		next.HighestBidder,
		boolField(next.IsClosed),
		next.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("run update script: %w", err)
	}

	switch v := res.(type) {
	case int64:
		if v == -1 {
			return domain.AuctionItem{}, domain.ErrNotFound
		}
		return domain.AuctionItem{}, domain.ErrVersionConflict
	case []interface{}:
		fields := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			fields[fmt.Sprint(v[i])] = fmt.Sprint(v[i+1])
		}
		return decodeAuctionHash(fields)
	}

	return domain.AuctionItem{}, fmt.Errorf("unexpected update script result %T", res)
}

func (r *RedisAdapter) Create(ctx context.Context, item domain.AuctionItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.Version = 0

	args := []interface{}{item.ClosingTime.UnixMilli(), item.ID}
	args = append(args, encodeAuctionHash(item)...)

	created, err := createAuctionScript.Run(ctx, r.client,
		[]string{auctionKeyPrefix + item.ID, closingIndexKey}, args...).Int()
	if err != nil {
		return "", fmt.Errorf("run create script: %w", err)
	}
	if created == 0 {
		return "", fmt.Errorf("create auction %s: already exists", item.ID)
	}

	return item.ID, nil
}

func (r *RedisAdapter) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuctionItem, error) {
	// the index is a superset by millisecond score, filter.Match is exact
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	nowMs := strconv.FormatInt(filter.Now.UnixMilli(), 10)
	if filter.ActiveOnly {
		rng.Min = nowMs
	}
	if filter.ExpiredOnly {
		rng.Max = nowMs
	}

	ids, err := r.client.ZRangeByScore(ctx, closingIndexKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("range closing index: %w", err)
	}
	if len(ids) == 0 {
		return []domain.AuctionItem{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, auctionKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load auctions: %w", err)
	}

	items := make([]domain.AuctionItem, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		item, err := decodeAuctionHash(fields)
		if err != nil {
			return nil, err
		}
		if filter.Match(item) {
			items = append(items, item)
		}
	}

	sortByClosingTime(items)
	return limit(items, filter.Limit), nil
}

func encodeAuctionHash(item domain.AuctionItem) []interface{} {
	return []interface{}{
		"id", item.ID,
		"item_name", item.ItemName,
		"description", item.Description,
		"seller", item.Seller,
		"starting_bid", item.StartingBid.String(),
		"current_bid", item.CurrentBid.String(),
		"highest_bidder", item.HighestBidder,
		"closing_time", item.ClosingTime.UTC().Format(time.RFC3339Nano),
		"is_closed", boolField(item.IsClosed),
		"version", strconv.FormatInt(item.Version, 10),
		"created_at", item.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at", item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeAuctionHash(fields map[string]string) (domain.AuctionItem, error) {
	item := domain.AuctionItem{
		ID:            fields["id"],
		ItemName:      fields["item_name"],
		Description:   fields["description"],
		Seller:        fields["seller"],
		HighestBidder: fields["highest_bidder"],
		IsClosed:      fields["is_closed"] == "1",
	}

	var err error
	if item.StartingBid, err = decimal.NewFromString(fields["starting_bid"]); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode starting_bid: %w", err)
	}
	if item.CurrentBid, err = decimal.NewFromString(fields["current_bid"]); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode current_bid: %w", err)
	}
	if item.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode version: %w", err)
	}
	if item.ClosingTime, err = time.Parse(time.RFC3339Nano, fields["closing_time"]); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode closing_time: %w", err)
	}
	if item.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode updated_at: %w", err)
	}

	return item, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

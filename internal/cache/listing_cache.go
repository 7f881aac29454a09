package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/isdelr/studshare-be/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	feedKey        = "listings:all"
	feedVersionKey = "listings:all:version"
)

var errStaleFill = errors.New("cache fill superseded by invalidation")

func listingKey(id int64) string {
	return "listing:" + strconv.FormatInt(id, 10)
}

func listingVersionKey(id int64) string {
	return listingKey(id) + ":version"
}

// ListingCache keeps the listing feed and individual listings in Redis as JSON.
// Each value has a version counter next to it. Invalidate bumps the counter and
// a fill only lands while the counter still holds the version its reader saw.
type ListingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewListingCache connects to addr and verifies the connection.
func NewListingCache(ctx context.Context, addr string, ttl time.Duration) (*ListingCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewListingCacheWithClient(client, ttl), nil
}

// NewListingCacheWithClient wraps an existing client.
func NewListingCacheWithClient(client redis.UniversalClient, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ListingCache{client: client, ttl: ttl}
}

// GetFeed returns the cached feed and the feed version; ok is false on a miss.
func (c *ListingCache) GetFeed(ctx context.Context) ([]models.Listing, int64, bool, error) {
	var listings []models.Listing
	version, ok, err := c.lookup(ctx, feedKey, feedVersionKey, &listings)
	if err != nil || !ok {
		return nil, version, false, err
	}
	return listings, version, true, nil
}

// SetFeed stores listings as the feed unless the feed was invalidated after version was read.
func (c *ListingCache) SetFeed(ctx context.Context, listings []models.Listing, version int64) error {
	return c.fill(ctx, feedKey, feedVersionKey, version, listings)
}

// GetListing returns a nil listing on a cache miss, along with the listing's version.
func (c *ListingCache) GetListing(ctx context.Context, id int64) (*models.Listing, int64, error) {
	var listing models.Listing
	version, ok, err := c.lookup(ctx, listingKey(id), listingVersionKey(id), &listing)
	if err != nil || !ok {
		return nil, version, err
	}
	return &listing, version, nil
}

// SetListing caches listing unless it was invalidated after version was read.
func (c *ListingCache) SetListing(ctx context.Context, listing models.Listing, version int64) error {
	return c.fill(ctx, listingKey(listing.ID), listingVersionKey(listing.ID), version, listing)
}

// Invalidate drops the feed and the given listings and bumps their versions.
func (c *ListingCache) Invalidate(ctx context.Context, ids ...int64) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, feedKey)
	for _, id := range ids {
		keys = append(keys, listingKey(id))
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, feedVersionKey)
		for _, id := range ids {
			pipe.Incr(ctx, listingVersionKey(id))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	return err
}

// Close releases the underlying connection pool.
func (c *ListingCache) Close() error {
	return c.client.Close()
}

// lookup reads a value and its version in one round trip.
func (c *ListingCache) lookup(ctx context.Context, key, versionKey string, dst interface{}) (int64, bool, error) {
	vals, err := c.client.MGet(ctx, key, versionKey).Result()
	if err != nil {
		return 0, false, err
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return 0, false, err
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return version, false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return version, false, err
	}
	return version, true, nil
}

func (c *ListingCache) fill(ctx context.Context, key, versionKey string, version int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	// A lost race leaves the key empty; the next reader fills it.
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contactkeval/option-wheel/internal/logger"
)

// CachedPriceProvider wraps a primary PriceProvider with a Redis read-through
// cache. Errors from Redis never fail a fetch; they only bypass the cache.
type CachedPriceProvider struct {
	primary PriceProvider
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedPriceProvider creates a cached wrapper around primary.
func NewCachedPriceProvider(primary PriceProvider, rdb *redis.Client, ttl time.Duration) *CachedPriceProvider {
	return &CachedPriceProvider{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (c *CachedPriceProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	key := barsKey(underlying, fromDate, toDate)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var bars []Bar
		if json.Unmarshal(raw, &bars) == nil && len(bars) > 0 {
			logger.Tracef("bars cache hit %s", key)
			return bars, nil
		}
	} else if err != redis.Nil {
		logger.Debugf("bars cache read failed: %v", err)
	}

	bars, err := c.primary.GetBars(ctx, underlying, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(bars); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.Debugf("bars cache write failed: %v", err)
		}
	}
	return bars, nil
}

func barsKey(underlying string, fromDate, toDate time.Time) string {
	return fmt.Sprintf("wheel:bars:%s:%s:%s", strings.ToUpper(underlying), DateKey(fromDate), DateKey(toDate))
}

package pricesource

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedSource serves recent payloads from Redis before hitting the upstream,
// keeping the dashboard inside the public API's rate limits. Cache failures
// degrade silently to a direct fetch.
type CachedSource struct {
	inner  Source
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSource wraps a source with a short-TTL Redis cache.
func NewCachedSource(inner Source, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedSource{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "price-cache").Logger(),
	}
}

// Fetch returns the cached payload when fresh, otherwise fetches upstream and
// writes through.
func (s *CachedSource) Fetch(ctx context.Context, assets []string, currency string) (PriceMap, error) {
	key := s.cacheKey(assets, currency)

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var prices PriceMap
		if err := json.Unmarshal([]byte(raw), &prices); err == nil {
			s.logger.Debug().Str("key", key).Msg("serving cached prices")
			return prices, nil
		}
	} else if err != redis.Nil {
		s.logger.Warn().Err(err).Msg("price cache read failed")
	}

	prices, err := s.inner.Fetch(ctx, assets, currency)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(prices); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("price cache write failed")
		}
	}
	return prices, nil
}

func (s *CachedSource) cacheKey(assets []string, currency string) string {
	return "prices:" + currency + ":" + strings.Join(assets, ",")
}

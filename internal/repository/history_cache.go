package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// HistorySource answers history summary queries, usually a *Store.
type HistorySource interface {
	HistorySummary(ctx context.Context, routeID int64, seat model.SeatType, from, to time.Time) (model.HistorySummary, error)
}

// HistoryCache memoizes history summaries in Redis.  Window bounds are
// widened to whole hours so calls within the same hour share an entry.
// A nil client turns the cache into a passthrough; Redis errors are
// logged and the source is queried directly.
type HistoryCache struct {
	src HistorySource
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewHistoryCache wraps src.  rdb may be nil.
func NewHistoryCache(src HistorySource, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *HistoryCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryCache{src: src, rdb: rdb, ttl: ttl, log: log}
}

func historyKey(routeID int64, seat model.SeatType, from, to time.Time) string {
	return fmt.Sprintf("history:%d:%s:%d:%d", routeID, seat, from.Unix(), to.Unix())
}

// HistorySummary returns the cached summary or computes and stores it.
func (c *HistoryCache) HistorySummary(ctx context.Context, routeID int64, seat model.SeatType, from, to time.Time) (model.HistorySummary, error) {
	from, to = from.UTC().Truncate(time.Hour), to.UTC().Truncate(time.Hour).Add(time.Hour)
	if c.rdb == nil {
		return c.src.HistorySummary(ctx, routeID, seat, from, to)
	}

	key := historyKey(routeID, seat, from, to)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var hs model.HistorySummary
		if jerr := json.Unmarshal(raw, &hs); jerr == nil {
			return hs, nil
		}
		c.log.Warn("history cache: corrupt entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("history cache: get failed", zap.String("key", key), zap.Error(err))
	}

	hs, err := c.src.HistorySummary(ctx, routeID, seat, from, to)
	if err != nil {
		return model.HistorySummary{}, err
	}
	if body, jerr := json.Marshal(hs); jerr == nil {
		if serr := c.rdb.SetEx(ctx, key, body, c.ttl).Err(); serr != nil {
			c.log.Warn("history cache: set failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return hs, nil
}

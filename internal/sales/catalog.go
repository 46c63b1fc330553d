package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	catalogVersionKey = "sales:catalog:version"
	catalogKeyPrefix  = "sales:catalog:price"
)

// PriceCache fronts a CatalogPricer with a versioned Redis cache. Concurrent
// lookups of the same item share one upstream request.
type PriceCache struct {
	source CatalogPricer
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewPriceCache wraps source. A nil client disables caching.
func NewPriceCache(source CatalogPricer, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PriceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceCache{source: source, client: client, ttl: ttl, logger: logger}
}

// FetchCatalogPrice returns the cached price of an item, loading it on a miss.
// Cache failures degrade to a direct lookup.
func (c *PriceCache) FetchCatalogPrice(ctx context.Context, itemReference string) (decimal.Decimal, error) {
	if c.client == nil {
		return c.source.FetchCatalogPrice(ctx, itemReference)
	}
	key, err := c.key(ctx, itemReference)
	if err != nil {
		c.logger.Warn("catalog cache version", slog.Any("error", err))
		return c.source.FetchCatalogPrice(ctx, itemReference)
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if price, perr := decimal.NewFromString(raw); perr == nil {
			return price, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache read", slog.String("item", itemReference), slog.Any("error", err))
	}

	resultCh := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(ctx, key, itemReference)
	})
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (c *PriceCache) load(ctx context.Context, key, itemReference string) (decimal.Decimal, error) {
	price, err := c.source.FetchCatalogPrice(ctx, itemReference)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.client.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write", slog.String("item", itemReference), slog.Any("error", err))
	}
	return price, nil
}

// Warm refreshes the cached prices of items with bounded concurrency.
func (c *PriceCache) Warm(ctx context.Context, items []string, concurrency int) (int, error) {
	if c.client == nil {
		return 0, errors.New("sales: price cache has no redis client")
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	warmed := make([]bool, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		g.Go(func() error {
			key, err := c.key(gctx, item)
			if err != nil {
				return err
			}
			if _, err := c.load(gctx, key, item); err != nil {
				return fmt.Errorf("warm %s: %w", item, err)
			}
			warmed[i] = true
			return nil
		})
	}
	err := g.Wait()
	count := 0
	for _, ok := range warmed {
		if ok {
			count++
		}
	}
	return count, err
}

// Bump invalidates every cached price by moving to a new cache version.
func (c *PriceCache) Bump(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, catalogVersionKey).Err()
}

func (c *PriceCache) key(ctx context.Context, itemReference string) (string, error) {
	ver, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, catalogVersionKey, 1, 0).Err(); err != nil {
			return "", err
		}
		ver = 1
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", catalogKeyPrefix, ver, itemReference), nil
}

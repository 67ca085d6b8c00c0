package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

type Source interface {
	ListProducts(ctx context.Context, f orders.ProductFilter) ([]orders.Product, error)
}

// Cache is a cache-aside view over product listings. Keys embed the current
// catalog generation, so Invalidate drops every listing with a single INCR and
// stale keys age out on their TTL.
type Cache struct {
	Redis  *redis.Client
	Source Source
	TTL    time.Duration

	group singleflight.Group
}

func New(rdb *redis.Client, src Source, ttl time.Duration) *Cache {
	return &Cache{Redis: rdb, Source: src, TTL: ttl}
}

func (c *Cache) Products(ctx context.Context, categoryID string) ([]orders.Product, error) {
	gen, err := c.Redis.Get(ctx, redisx.KeyCatalogGen).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		// redis unavailable: serve from the store
		return c.Source.ListProducts(ctx, orders.ProductFilter{CategoryID: categoryID})
	}
	key := fmt.Sprintf(redisx.KeyCatalogProducts, gen, categoryID)

	if b, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var out []orders.Product
		if json.Unmarshal(b, &out) == nil {
			return out, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		ps, err := c.Source.ListProducts(ctx, orders.ProductFilter{CategoryID: categoryID})
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(ps); err == nil {
			_ = c.Redis.Set(ctx, key, string(b), c.TTL).Err()
		}
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]orders.Product), nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	return c.Redis.Incr(ctx, redisx.KeyCatalogGen).Err()
}

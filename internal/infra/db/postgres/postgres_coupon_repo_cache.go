package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/metrics"
	red "coinshop-coupons/internal/infra/redis"
)

var _ repository.CouponRepository = (*couponRepoCacheDecorator)(nil)

// couponRepoCacheDecorator serves coupon reads from Redis. Every write
// path invalidates the cached entry, including Redeem: correctness does
// not depend on cache freshness because the allowance decision is the
// guarded UPDATE underneath, so the worst a stale read can do is produce
// a rejection message one request earlier or later than the database
// state.
type couponRepoCacheDecorator struct {
	inner repository.CouponRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCouponRepoCacheDecorator(inner repository.CouponRepository, cache red.RedisClient, ttl time.Duration) repository.CouponRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &couponRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func couponKey(code string) string { return fmt.Sprintf("coupon:%s", code) }

func (d *couponRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	// Transactional reads must see the transaction's own view.
	if tx != nil {
		return d.inner.FindByCode(ctx, tx, code)
	}

	key := couponKey(code)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var c model.Coupon
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("coupon", "hit")
			return &c, nil
		}
	}

	metrics.IncCacheRequest("coupon", "miss")
	c, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(c); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return c, nil
}

func (d *couponRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	_ = d.cache.Del(ctx, couponKey(c.Code))
	return d.inner.Create(ctx, tx, c)
}

func (d *couponRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, code string, patch repository.CouponPatch) error {
	_ = d.cache.Del(ctx, couponKey(code))
	return d.inner.Update(ctx, tx, code, patch)
}

func (d *couponRepoCacheDecorator) Redeem(ctx context.Context, tx repository.Tx, code string, newNote *string) (*model.Coupon, error) {
	_ = d.cache.Del(ctx, couponKey(code))
	return d.inner.Redeem(ctx, tx, code, newNote)
}

func (d *couponRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, code string) error {
	_ = d.cache.Del(ctx, couponKey(code))
	return d.inner.Delete(ctx, tx, code)
}

func (d *couponRepoCacheDecorator) DeleteBatch(ctx context.Context, tx repository.Tx, codes []string) error {
	keys := make([]string, 0, len(codes))
	for _, c := range codes {
		keys = append(keys, couponKey(c))
	}
	_ = d.cache.Del(ctx, keys...)
	return d.inner.DeleteBatch(ctx, tx, codes)
}

func (d *couponRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	return d.inner.ListAll(ctx, tx)
}

//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

func TestCouponRepo_ConcurrentRedeem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCouponRepo()
	limit := 10
	err := repo.Create(ctx, repository.NoTX, &model.Coupon{
		Code:        "HOTCODE1",
		Type:        model.CouponTypeCertainAmount,
		RedeemLimit: &limit,
		Validity:    time.Now().Add(time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, repository.NoTX, "HOTCODE1", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrNotFound):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != limit {
		t.Fatalf("successes = %d, want exactly %d", succeeded, limit)
	}
	if rejected != callers-limit {
		t.Fatalf("rejections = %d, want %d", rejected, callers-limit)
	}

	c, _ := repo.FindByCode(ctx, repository.NoTX, "HOTCODE1")
	if c.RedeemCount != limit {
		t.Fatalf("redeem count = %d", c.RedeemCount)
	}
}

func TestCouponRepo_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewCouponRepo()
	_ = repo.Create(ctx, repository.NoTX, &model.Coupon{
		Code: "COPYME1", Coins: 5, Type: model.CouponTypeSingle,
		Validity: time.Now().Add(time.Hour).UnixMilli(),
	})

	c1, _ := repo.FindByCode(ctx, repository.NoTX, "COPYME1")
	c1.Coins = 999
	c2, _ := repo.FindByCode(ctx, repository.NoTX, "COPYME1")
	if c2.Coins != 5 {
		t.Fatalf("mutation leaked into the store: coins = %d", c2.Coins)
	}
}

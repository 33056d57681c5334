//go:build !integration

package sched

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/memory"
)

func TestIssuanceReconciler_FixesStuckFlag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	coupons := memory.NewCouponRepo()
	purchases := memory.NewPurchaseRepo()
	l := zerolog.Nop()

	future := time.Now().Add(time.Hour).UnixMilli()
	// stuck: coupon exists, flag never flipped
	_ = coupons.Create(ctx, repository.NoTX, &model.Coupon{Code: "TXSTUCK1", Type: model.CouponTypeSingle, Validity: future})
	_ = purchases.Save(ctx, repository.NoTX, &model.Purchase{ID: "p1", TxnID: "TXSTUCK1", Amount: 300})
	// healthy: no coupon yet, must stay untouched
	_ = purchases.Save(ctx, repository.NoTX, &model.Purchase{ID: "p2", TxnID: "TXFRESH2", Amount: 300})
	// already consistent
	_ = purchases.Save(ctx, repository.NoTX, &model.Purchase{ID: "p3", TxnID: "TXDONE3", Amount: 300, IsRedeemed: true})

	w := NewIssuanceReconciler(coupons, purchases, time.Minute, &l)
	w.tick(ctx)

	stuck, _ := purchases.FindByTxnID(ctx, repository.NoTX, "TXSTUCK1")
	if !stuck.IsRedeemed {
		t.Fatal("stuck purchase not reconciled")
	}
	fresh, _ := purchases.FindByTxnID(ctx, repository.NoTX, "TXFRESH2")
	if fresh.IsRedeemed {
		t.Fatal("pending purchase wrongly flagged")
	}
}

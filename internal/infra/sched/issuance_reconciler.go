package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/ports/repository"
)

// IssuanceReconciler periodically sweeps the purchase ledger for records
// that still read unredeemed although a coupon already exists for their
// transaction id. That state is left behind when issuance crashes (or a
// remote flag write fails) between minting the coupon and flipping the
// purchase flag; the sweep finishes the second write.
type IssuanceReconciler struct {
	coupons   repository.CouponRepository
	purchases repository.PurchaseRepository
	interval  time.Duration
	log       *zerolog.Logger
}

func NewIssuanceReconciler(coupons repository.CouponRepository, purchases repository.PurchaseRepository, interval time.Duration, logger *zerolog.Logger) *IssuanceReconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IssuanceReconciler{coupons: coupons, purchases: purchases, interval: interval, log: logger}
}

func (w *IssuanceReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *IssuanceReconciler) tick(ctx context.Context) {
	purchases, err := w.purchases.ListAll(ctx, repository.NoTX)
	if err != nil {
		w.log.Error().Err(err).Msg("issuance-reconciler: list purchases")
		return
	}
	for _, p := range purchases {
		if p.IsRedeemed {
			continue
		}
		if _, err := w.coupons.FindByCode(ctx, repository.NoTX, p.TxnID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.log.Error().Err(err).Str("txn_id", p.TxnID).Msg("issuance-reconciler: lookup coupon")
			}
			continue
		}
		// coupon minted but the flag write never landed
		if err := w.purchases.MarkRedeemed(ctx, repository.NoTX, p.TxnID, true); err != nil {
			w.log.Error().Err(err).Str("txn_id", p.TxnID).Msg("issuance-reconciler: mark redeemed")
			continue
		}
		w.log.Info().Str("txn_id", p.TxnID).Msg("issuance-reconciler: reconciled stuck purchase")
	}
}

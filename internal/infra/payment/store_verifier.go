package payment

import (
	"context"

	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/adapter"
	"coinshop-coupons/internal/domain/ports/repository"
)

var _ adapter.PaymentVerifier = (*StoreVerifier)(nil)

// StoreVerifier confirms purchases against this service's own ledger.
// Because it honors the Tx handle, issuance can commit the coupon and
// the redeemed flag together.
type StoreVerifier struct {
	purchases repository.PurchaseRepository
}

func NewStoreVerifier(purchases repository.PurchaseRepository) *StoreVerifier {
	return &StoreVerifier{purchases: purchases}
}

func (v *StoreVerifier) Name() string { return "local" }

func (v *StoreVerifier) Verify(ctx context.Context, tx repository.Tx, txnID string) (*model.Purchase, error) {
	return v.purchases.FindByTxnID(ctx, tx, txnID)
}

func (v *StoreVerifier) MarkRedeemed(ctx context.Context, tx repository.Tx, txnID string) error {
	return v.purchases.MarkRedeemed(ctx, tx, txnID, true)
}

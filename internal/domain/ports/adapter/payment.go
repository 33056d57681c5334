package adapter

import (
	"context"

	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

// PaymentVerifier is the port for confirming manually reported
// mobile-wallet payments before a coupon is minted from them. It is
// intentionally opaque: the purchase ledger may live in this service's
// own database or behind the external wallet-intake API, and issuance
// does not care which.
//
// The repository.Tx handle is threaded through so a store-backed
// implementation can participate in the issuance transaction; remote
// implementations ignore it.
type PaymentVerifier interface {
	// Verify returns the purchase record for a transaction id, or
	// domain.ErrPurchaseNotFound. It does not check the redeemed flag or
	// the amount; those business rules belong to the issuance service.
	Verify(ctx context.Context, tx repository.Tx, txnID string) (*model.Purchase, error)
	// MarkRedeemed flags the purchase as consumed. Must be idempotent.
	MarkRedeemed(ctx context.Context, tx repository.Tx, txnID string) error
	// Name identifies the verifier backend for logs.
	Name() string
}

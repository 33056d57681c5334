package repository

import (
	"context"

	"coinshop-coupons/internal/domain/model"
)

// PurchaseRepository is the port for reported wallet payments.
type PurchaseRepository interface {
	// FindByTxnID returns the purchase or domain.ErrPurchaseNotFound.
	// Transaction ids are matched case-insensitively.
	FindByTxnID(ctx context.Context, tx Tx, txnID string) (*model.Purchase, error)
	// Save inserts or replaces a purchase record by transaction id.
	Save(ctx context.Context, tx Tx, p *model.Purchase) error
	// MarkRedeemed flips the is_redeemed flag. Setting it to true is
	// idempotent, which keeps a retried issuance safe.
	MarkRedeemed(ctx context.Context, tx Tx, txnID string, redeemed bool) error
	// ListAll returns purchases ordered by received time, newest first.
	ListAll(ctx context.Context, tx Tx) ([]*model.Purchase, error)
}

package repository

import (
	"context"

	"coinshop-coupons/internal/domain/model"
)

// CouponPatch carries a partial admin edit. Nil fields are left
// untouched; the Clear flags set their nullable column to NULL. The
// coupon code is the store key and is never patchable.
type CouponPatch struct {
	Coins       *int
	Type        *model.CouponType
	RedeemLimit *int
	ClearLimit  bool
	Validity    *int64
	ShowAds     *bool
	Pkg         *string
	Note        *string
	ClearNote   bool
}

// CouponRepository is the port for coupon persistence, keyed by the
// normalized coupon code.
type CouponRepository interface {
	// FindByCode returns the coupon or domain.ErrNotFound.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	// Create inserts a new coupon; domain.ErrDuplicateCode when the code
	// is already taken.
	Create(ctx context.Context, tx Tx, c *model.Coupon) error
	// Update applies a partial edit to an existing coupon.
	Update(ctx context.Context, tx Tx, code string, patch CouponPatch) error
	// Redeem atomically increments redeem_count while the coupon's
	// type-specific allowance still holds, optionally replacing the note,
	// and returns the post-redemption record. The limit check and the
	// increment are one guarded write, so two racing callers can never
	// both consume the last allowance. Returns domain.ErrNotFound when
	// the guarded write matched no row, which means the coupon is either
	// gone or exhausted; callers reclassify from the state they last read.
	Redeem(ctx context.Context, tx Tx, code string, newNote *string) (*model.Coupon, error)
	// Delete removes a coupon. Deleting a missing code is not an error.
	Delete(ctx context.Context, tx Tx, code string) error
	// DeleteBatch removes several coupons, in one transaction when the
	// backing store supports it.
	DeleteBatch(ctx context.Context, tx Tx, codes []string) error
	// ListAll returns every coupon ordered by creation time, newest first.
	ListAll(ctx context.Context, tx Tx) ([]*model.Coupon, error)
}

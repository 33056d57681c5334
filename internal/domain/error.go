package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Redemption errors
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrPackageMismatch   = errors.New("coupon is bound to a different package")
	ErrCouponExpired     = errors.New("coupon has expired")
	ErrAlreadyRedeemed   = errors.New("coupon already redeemed")
	ErrLimitReached      = errors.New("coupon redemption limit reached")
	ErrInvalidCouponType = errors.New("invalid coupon type")

	// Issuance errors
	ErrDuplicateCode           = errors.New("coupon code already exists")
	ErrAmountMismatch          = errors.New("paid amount is less than the product price")
	ErrPurchaseAlreadyRedeemed = errors.New("purchase already redeemed")
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrIssuanceLocked          = errors.New("issuance already in progress for this transaction")

	// Infra errors
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
)

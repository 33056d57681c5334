package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

// Compile-time check
var _ RedeemUseCase = (*redeemUC)(nil)

// RedeemUseCase is the externally visible redemption operation.
type RedeemUseCase interface {
	// Redeem validates and consumes one unit of a coupon's allowance.
	Redeem(ctx context.Context, codeRaw string, opts RedeemOptions) (*RedeemResult, error)
}

// RedeemOptions carries the optional redemption context.
type RedeemOptions struct {
	// Package is the client application identifier checked against a
	// bound coupon.
	Package string
	// Note is a caller-supplied annotation appended to single-use
	// coupons' audit note.
	Note string
}

// RedeemResult is the success payload returned to the redeeming client.
type RedeemResult struct {
	Code       string
	CoinAmount int
	ShowAd     bool
	// Validity is the expiry instant shifted to Bangladesh time (UTC+6),
	// second precision, no offset suffix. ValidityMillis is the same
	// instant as raw epoch milliseconds.
	Validity       string
	ValidityMillis int64
}

// bdtOffset shifts UTC to Bangladesh Standard Time for the validity
// string in the response, matching what the redeeming apps display.
const bdtOffset = 6 * time.Hour

func formatValidity(ms int64) string {
	return time.UnixMilli(ms).UTC().Add(bdtOffset).Format("2006-01-02T15:04:05")
}

type redeemUC struct {
	coupons repository.CouponRepository
	log     *zerolog.Logger
	clock   func() time.Time
}

func NewRedeemUseCase(coupons repository.CouponRepository, logger *zerolog.Logger) *redeemUC {
	return &redeemUC{coupons: coupons, log: logger, clock: time.Now}
}

// Redeem normalizes the raw code, evaluates the coupon's rules against
// the current time, and applies the guarded increment at the store
// layer. Exactly one store write happens per successful call; failures
// leave the record untouched.
func (u *redeemUC) Redeem(ctx context.Context, codeRaw string, opts RedeemOptions) (*RedeemResult, error) {
	code := model.NormalizeCode(codeRaw)
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}

	c, err := u.coupons.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}

	out, err := model.EvaluateRedemption(c, u.clock(), opts.Package, opts.Note)
	if err != nil {
		return nil, err
	}

	updated, err := u.coupons.Redeem(ctx, repository.NoTX, code, out.NewNote)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A concurrent caller consumed the last allowance (or an admin
			// deleted the coupon) between our read and the guarded write.
			switch c.Type {
			case model.CouponTypeSingle:
				return nil, domain.ErrAlreadyRedeemed
			case model.CouponTypeCertainAmount:
				return nil, domain.ErrLimitReached
			default:
				return nil, domain.ErrCouponNotFound
			}
		}
		return nil, err
	}

	u.log.Info().
		Str("code", updated.Code).
		Str("type", string(updated.Type)).
		Int("redeem_count", updated.RedeemCount).
		Msg("coupon redeemed")

	return &RedeemResult{
		Code:           updated.Code,
		CoinAmount:     updated.Coins,
		ShowAd:         updated.ShowAds,
		Validity:       formatValidity(updated.Validity),
		ValidityMillis: updated.Validity,
	}, nil
}

package model

import (
	"strings"
	"time"
	"unicode"

	"coinshop-coupons/internal/domain"
)

// CouponType discriminates how a coupon's usage allowance is counted.
type CouponType string

const (
	// CouponTypeSingle allows exactly one successful redemption.
	CouponTypeSingle CouponType = "single"
	// CouponTypeCertainAmount allows up to RedeemLimit redemptions.
	CouponTypeCertainAmount CouponType = "certain_amount"
	// CouponTypeMultiple has no usage ceiling; only validity bounds it.
	CouponTypeMultiple CouponType = "multiple"
)

// ParseCouponType maps a wire-level type string onto the enum. Older
// revisions of the storefront stored "certain amount" and "certain" for
// the limited type; both are accepted here so existing records keep
// working, but they are normalized to CouponTypeCertainAmount on the
// way in.
func ParseCouponType(s string) (CouponType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return CouponTypeSingle, nil
	case "certain_amount", "certain amount", "certain":
		return CouponTypeCertainAmount, nil
	case "multiple":
		return CouponTypeMultiple, nil
	default:
		return "", domain.ErrInvalidCouponType
	}
}

// Coupon is a redeemable code granting a coin quantity, subject to
// expiry and usage-limit rules. The code doubles as the store key and
// is immutable after creation. Validity and Created are epoch
// milliseconds, matching the wire format the redeeming clients expect.
type Coupon struct {
	Code        string
	Coins       int
	Type        CouponType
	RedeemLimit *int // only meaningful for certain_amount; nil otherwise
	RedeemCount int
	Validity    int64 // epoch ms; expired when now is past this instant
	ShowAds     bool
	Pkg         string // optional package binding
	Note        *string
	Created     int64 // epoch ms
}

// NormalizeCode uppercases a raw code and strips all whitespace,
// including interior runs, so " summer24 " and "SUMMER24" key the same
// record.
func NormalizeCode(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NewCoupon validates and constructs a coupon from admin input. The
// code must normalize to at least 3 characters, coins must be
// non-negative, validity must be strictly in the future, and
// certain_amount coupons require a positive redeem limit. The limit is
// forced to nil for the other types.
func NewCoupon(code string, coins int, typ CouponType, redeemLimit *int, validity int64, showAds bool, pkg string, note *string, now time.Time) (*Coupon, error) {
	code = NormalizeCode(code)
	if len(code) < 3 {
		return nil, domain.ErrInvalidArgument
	}
	if coins < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if validity <= now.UnixMilli() {
		return nil, domain.ErrInvalidArgument
	}
	switch typ {
	case CouponTypeCertainAmount:
		if redeemLimit == nil || *redeemLimit <= 0 {
			return nil, domain.ErrInvalidArgument
		}
	case CouponTypeSingle, CouponTypeMultiple:
		redeemLimit = nil
	default:
		return nil, domain.ErrInvalidCouponType
	}
	return &Coupon{
		Code:        code,
		Coins:       coins,
		Type:        typ,
		RedeemLimit: redeemLimit,
		RedeemCount: 0,
		Validity:    validity,
		ShowAds:     showAds,
		Pkg:         pkg,
		Note:        note,
		Created:     now.UnixMilli(),
	}, nil
}

// Expired reports whether the coupon's validity instant has passed.
func (c *Coupon) Expired(now time.Time) bool {
	return now.UnixMilli() > c.Validity
}

// RedemptionOutcome is the post-redemption state computed by
// EvaluateRedemption. The caller persists it; the evaluation itself
// never touches storage.
type RedemptionOutcome struct {
	NewRedeemCount int
	NewNote        *string // nil when the note is unchanged
}

// EvaluateRedemption decides whether a coupon may be redeemed right now
// by a caller presenting the given package identifier, and computes the
// resulting record state. Checks run in a fixed order and the first
// failure wins: package binding, expiry, then the type-specific usage
// limit. Deterministic and side-effect free.
func EvaluateRedemption(c *Coupon, now time.Time, pkg, callerNote string) (RedemptionOutcome, error) {
	if c.Pkg != "" && pkg != c.Pkg {
		return RedemptionOutcome{}, domain.ErrPackageMismatch
	}
	if c.Expired(now) {
		return RedemptionOutcome{}, domain.ErrCouponExpired
	}
	switch c.Type {
	case CouponTypeSingle:
		if c.RedeemCount >= 1 {
			return RedemptionOutcome{}, domain.ErrAlreadyRedeemed
		}
	case CouponTypeCertainAmount:
		if c.RedeemLimit != nil && c.RedeemCount >= *c.RedeemLimit {
			return RedemptionOutcome{}, domain.ErrLimitReached
		}
	case CouponTypeMultiple:
		// no usage ceiling
	default:
		return RedemptionOutcome{}, domain.ErrInvalidCouponType
	}

	out := RedemptionOutcome{NewRedeemCount: c.RedeemCount + 1}
	if c.Type == CouponTypeSingle && callerNote != "" {
		appended := appendRedeemNote(c.Note, callerNote)
		out.NewNote = &appended
	}
	return out, nil
}

// appendRedeemNote tacks the redeeming caller's annotation onto the
// coupon's audit note.
func appendRedeemNote(prior *string, callerNote string) string {
	if prior == nil || *prior == "" {
		return "| Redeemed By ⇒ " + callerNote
	}
	return *prior + ", | Redeemed By ⇒ " + callerNote
}

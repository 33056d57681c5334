package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/adapter"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/metrics"
)

// Compile-time check
var _ CouponUseCase = (*couponUC)(nil)

// CouponUseCase covers coupon issuance and admin maintenance.
type CouponUseCase interface {
	// Create mints a coupon from validated admin input.
	Create(ctx context.Context, in CouponInput) (*model.Coupon, error)
	// Clone creates a new coupon pre-filled from an existing one under a
	// new code.
	Clone(ctx context.Context, existingCode, newCode string) (*model.Coupon, error)
	// CreateFromPurchase converts a verified, unredeemed wallet payment
	// into a single-use coupon whose code is the transaction id, then
	// marks the purchase consumed.
	CreateFromPurchase(ctx context.Context, txnID string, product *model.Product) (*model.Coupon, error)
	// Update applies a partial admin edit; the code is immutable.
	Update(ctx context.Context, code string, patch repository.CouponPatch) error
	Delete(ctx context.Context, code string) error
	DeleteBatch(ctx context.Context, codes []string) error
	Get(ctx context.Context, code string) (*model.Coupon, error)
	List(ctx context.Context) ([]*model.Coupon, error)
}

// CouponInput is the admin creation form.
type CouponInput struct {
	Code        string
	Coins       int
	Type        model.CouponType
	RedeemLimit *int
	Validity    int64 // epoch ms, must be in the future
	ShowAds     bool
	Pkg         string
	Note        *string
}

// Locker serializes issuance per transaction id across processes so two
// concurrent verification requests cannot both walk the mint path. The
// code-uniqueness constraint is the hard guarantee; the lock just keeps
// the loser from doing wasted verification work.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type couponUC struct {
	coupons  repository.CouponRepository
	verifier adapter.PaymentVerifier
	tm       repository.TransactionManager // nil when the verifier is remote
	locker   Locker                        // nil when Redis is not wired
	log      *zerolog.Logger
	clock    func() time.Time
}

func NewCouponUseCase(
	coupons repository.CouponRepository,
	verifier adapter.PaymentVerifier,
	tm repository.TransactionManager,
	locker Locker,
	logger *zerolog.Logger,
) *couponUC {
	return &couponUC{
		coupons:  coupons,
		verifier: verifier,
		tm:       tm,
		locker:   locker,
		log:      logger,
		clock:    time.Now,
	}
}

func (u *couponUC) Create(ctx context.Context, in CouponInput) (*model.Coupon, error) {
	c, err := model.NewCoupon(in.Code, in.Coins, in.Type, in.RedeemLimit, in.Validity, in.ShowAds, in.Pkg, in.Note, u.clock())
	if err != nil {
		return nil, err
	}
	if err := u.coupons.Create(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	u.log.Info().Str("code", c.Code).Str("type", string(c.Type)).Msg("coupon created")
	return c, nil
}

func (u *couponUC) Clone(ctx context.Context, existingCode, newCode string) (*model.Coupon, error) {
	src, err := u.coupons.FindByCode(ctx, repository.NoTX, model.NormalizeCode(existingCode))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	return u.Create(ctx, CouponInput{
		Code:        newCode,
		Coins:       src.Coins,
		Type:        src.Type,
		RedeemLimit: src.RedeemLimit,
		Validity:    src.Validity,
		ShowAds:     src.ShowAds,
		Pkg:         src.Pkg,
		Note:        src.Note,
	})
}

const defaultSubscriptionDays = 30

// issuanceLockTTL bounds how long a crashed issuance can keep its
// transaction id locked.
const issuanceLockTTL = 30 * time.Second

func (u *couponUC) CreateFromPurchase(ctx context.Context, txnID string, product *model.Product) (*model.Coupon, error) {
	if product == nil {
		return nil, domain.ErrInvalidArgument
	}
	code := model.NormalizeCode(txnID)
	if len(code) < 3 {
		return nil, domain.ErrInvalidArgument
	}

	if u.locker != nil {
		lockKey := "issue:" + code
		token, err := u.locker.TryLock(ctx, lockKey, issuanceLockTTL)
		if err != nil {
			return nil, domain.ErrIssuanceLocked
		}
		defer func() { _ = u.locker.Unlock(ctx, lockKey, token) }()
	}

	if u.tm != nil {
		// Store-backed verifier: coupon creation and the purchase flag
		// commit or roll back together.
		var c *model.Coupon
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			minted, err := u.mint(ctx, tx, code, product)
			if err != nil {
				return err
			}
			c = minted
			return nil
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// Remote verifier: two-write sequence. Minting rechecks the purchase
	// flag, so a retry after a crash between the writes fails cleanly
	// with a duplicate code instead of minting twice; a stuck unredeemed
	// flag is surfaced for reconciliation below.
	return u.mint(ctx, repository.NoTX, code, product)
}

func (u *couponUC) mint(ctx context.Context, tx repository.Tx, code string, product *model.Product) (*model.Coupon, error) {
	p, err := u.verifier.Verify(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if p.IsRedeemed {
		return nil, domain.ErrPurchaseAlreadyRedeemed
	}
	if p.Amount < product.Price() {
		return nil, domain.ErrAmountMismatch
	}

	days := product.SubscriptionDays
	if days <= 0 {
		days = defaultSubscriptionDays
	}
	now := u.clock()
	coins := 0
	if product.Type != model.ProductTypeSubscription {
		coins = product.CoinAmount
	}
	note := fmt.Sprintf("Purchased: %s - %s", product.Name, product.Description)

	c, err := model.NewCoupon(
		code,
		coins,
		model.CouponTypeSingle,
		nil,
		now.Add(time.Duration(days)*24*time.Hour).UnixMilli(),
		product.Type != model.ProductTypeSubscription,
		"",
		&note,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := u.coupons.Create(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := u.verifier.MarkRedeemed(ctx, tx, code); err != nil {
		if tx != repository.NoTX && tx != nil {
			return nil, err // roll back the coupon with it
		}
		// The coupon exists but the purchase still reads unredeemed. The
		// buyer has their code; flag the stuck record for reconciliation.
		metrics.IncIssuancePartialFailure()
		u.log.Error().Err(err).
			Str("txn_id", code).
			Str("verifier", u.verifier.Name()).
			Msg("coupon minted but purchase flag not updated; needs reconciliation")
	}

	u.log.Info().
		Str("code", c.Code).
		Str("product", product.Name).
		Int64("amount", p.Amount).
		Msg("coupon issued from verified purchase")
	return c, nil
}

func (u *couponUC) Update(ctx context.Context, code string, patch repository.CouponPatch) error {
	norm := model.NormalizeCode(code)
	if norm == "" {
		return domain.ErrInvalidArgument
	}
	if patch.Type != nil {
		typ, err := model.ParseCouponType(string(*patch.Type))
		if err != nil {
			return err
		}
		patch.Type = &typ
	}
	if patch.RedeemLimit != nil && *patch.RedeemLimit <= 0 {
		return domain.ErrInvalidArgument
	}
	return u.coupons.Update(ctx, repository.NoTX, norm, patch)
}

func (u *couponUC) Delete(ctx context.Context, code string) error {
	return u.coupons.Delete(ctx, repository.NoTX, model.NormalizeCode(code))
}

func (u *couponUC) DeleteBatch(ctx context.Context, codes []string) error {
	norm := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := model.NormalizeCode(c); n != "" {
			norm = append(norm, n)
		}
	}
	if len(norm) == 0 {
		return nil
	}
	return u.coupons.DeleteBatch(ctx, repository.NoTX, norm)
}

func (u *couponUC) Get(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := u.coupons.FindByCode(ctx, repository.NoTX, model.NormalizeCode(code))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	return c, nil
}

func (u *couponUC) List(ctx context.Context) ([]*model.Coupon, error) {
	return u.coupons.ListAll(ctx, repository.NoTX)
}

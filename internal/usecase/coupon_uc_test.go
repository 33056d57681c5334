//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/memory"
)

func newCouponUC(repo repository.CouponRepository, v *fakeVerifier, tm repository.TransactionManager, lk Locker) *couponUC {
	uc := NewCouponUseCase(repo, v, tm, lk, testLogger())
	uc.clock = fixedClock(testNow)
	return uc
}

func subscriptionProduct() *model.Product {
	return &model.Product{
		Type:         model.ProductTypeSubscription,
		Name:         "Pro Monthly",
		Description:  "30 days ad-free",
		RegularPrice: 300,
	}
}

func coinProduct() *model.Product {
	return &model.Product{
		Type:             model.ProductTypeCoins,
		Name:             "Coin Pack L",
		Description:      "1200 coins",
		RegularPrice:     500,
		DiscountedPrice:  450,
		CoinAmount:       1200,
		SubscriptionDays: 90,
	}
}

func TestCouponCreate(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	uc := newCouponUC(repo, newFakeVerifier(), nil, nil)
	ctx := context.Background()

	c, err := uc.Create(ctx, CouponInput{Code: " new year ", Coins: 25, Type: model.CouponTypeSingle, Validity: testValidity})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Code != "NEWYEAR" {
		t.Fatalf("code = %q", c.Code)
	}

	if _, err := uc.Create(ctx, CouponInput{Code: "newyear", Coins: 1, Type: model.CouponTypeMultiple, Validity: testValidity}); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("duplicate err = %v", err)
	}

	invalid := []CouponInput{
		{Code: "AB", Coins: 1, Type: model.CouponTypeSingle, Validity: testValidity},
		{Code: "NEG", Coins: -1, Type: model.CouponTypeSingle, Validity: testValidity},
		{Code: "PAST", Coins: 1, Type: model.CouponTypeSingle, Validity: testNow - 1},
		{Code: "NOLIM", Coins: 1, Type: model.CouponTypeCertainAmount, Validity: testValidity},
	}
	for _, in := range invalid {
		if _, err := uc.Create(ctx, in); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("create %q err = %v, want ErrInvalidArgument", in.Code, err)
		}
	}
}

func TestCouponClone(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	uc := newCouponUC(repo, newFakeVerifier(), nil, nil)
	ctx := context.Background()

	limit := 10
	note := "campaign A"
	src, err := uc.Create(ctx, CouponInput{
		Code: "SRC01", Coins: 40, Type: model.CouponTypeCertainAmount,
		RedeemLimit: &limit, Validity: testValidity, ShowAds: true,
		Pkg: "com.example.app", Note: &note,
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	dup, err := uc.Clone(ctx, "src01", "COPY1")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if dup.Code != "COPY1" {
		t.Fatalf("clone code = %q", dup.Code)
	}
	if dup.Coins != src.Coins || dup.Type != src.Type || dup.Pkg != src.Pkg || dup.ShowAds != src.ShowAds {
		t.Fatalf("clone diverges from source: %+v", dup)
	}
	if dup.RedeemLimit == nil || *dup.RedeemLimit != limit {
		t.Fatalf("clone limit = %v", dup.RedeemLimit)
	}
	if dup.RedeemCount != 0 {
		t.Fatalf("clone count = %d", dup.RedeemCount)
	}

	if _, err := uc.Clone(ctx, "MISSING", "X99"); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Fatalf("clone missing err = %v", err)
	}
}

func TestCreateFromPurchase_Subscription(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("TXN123ABC", 300, false)
	uc := newCouponUC(repo, v, nil, nil)

	c, err := uc.CreateFromPurchase(context.Background(), "txn123abc", subscriptionProduct())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c.Code != "TXN123ABC" {
		t.Fatalf("code = %q", c.Code)
	}
	if c.Type != model.CouponTypeSingle || c.Coins != 0 || c.ShowAds {
		t.Fatalf("subscription coupon = %+v", c)
	}
	wantValidity := time.UnixMilli(testNow).Add(30 * 24 * time.Hour).UnixMilli()
	if c.Validity != wantValidity {
		t.Fatalf("validity = %d, want %d", c.Validity, wantValidity)
	}
	if c.Note == nil || *c.Note != "Purchased: Pro Monthly - 30 days ad-free" {
		t.Fatalf("note = %v", c.Note)
	}
	if !v.redeemed("TXN123ABC") {
		t.Fatal("purchase not marked redeemed")
	}
}

func TestCreateFromPurchase_CoinBundle(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("COIN99XYZ", 450, false)
	uc := newCouponUC(repo, v, nil, nil)

	c, err := uc.CreateFromPurchase(context.Background(), "COIN99XYZ", coinProduct())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c.Coins != 1200 || !c.ShowAds {
		t.Fatalf("coin coupon = %+v", c)
	}
	wantValidity := time.UnixMilli(testNow).Add(90 * 24 * time.Hour).UnixMilli()
	if c.Validity != wantValidity {
		t.Fatalf("validity = %d, want %d", c.Validity, wantValidity)
	}
}

func TestCreateFromPurchase_Failures(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("USED111", 300, true)
	v.put("CHEAP22", 100, false)
	uc := newCouponUC(repo, v, nil, nil)
	ctx := context.Background()

	if _, err := uc.CreateFromPurchase(ctx, "NOSUCH9", subscriptionProduct()); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("missing purchase err = %v", err)
	}
	if _, err := uc.CreateFromPurchase(ctx, "USED111", subscriptionProduct()); !errors.Is(err, domain.ErrPurchaseAlreadyRedeemed) {
		t.Fatalf("consumed purchase err = %v", err)
	}
	if _, err := uc.CreateFromPurchase(ctx, "CHEAP22", subscriptionProduct()); !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("underpaid err = %v", err)
	}
	if _, err := uc.CreateFromPurchase(ctx, "AB", subscriptionProduct()); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("short txn err = %v", err)
	}
	if _, err := uc.CreateFromPurchase(ctx, "OK123", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("nil product err = %v", err)
	}
}

func TestCreateFromPurchase_Idempotent(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("REPEAT77", 300, false)
	uc := newCouponUC(repo, v, nil, nil)
	ctx := context.Background()

	if _, err := uc.CreateFromPurchase(ctx, "REPEAT77", subscriptionProduct()); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	// the purchase flag now blocks the retry before the code constraint
	// would
	if _, err := uc.CreateFromPurchase(ctx, "REPEAT77", subscriptionProduct()); !errors.Is(err, domain.ErrPurchaseAlreadyRedeemed) {
		t.Fatalf("retry err = %v", err)
	}

	coupons, _ := repo.ListAll(ctx, repository.NoTX)
	if len(coupons) != 1 {
		t.Fatalf("coupon count = %d", len(coupons))
	}
}

func TestCreateFromPurchase_LockerRefusal(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("LOCKD55", 300, false)
	lk := newFakeLocker()
	lk.busy = true
	uc := newCouponUC(repo, v, nil, lk)

	if _, err := uc.CreateFromPurchase(context.Background(), "LOCKD55", subscriptionProduct()); !errors.Is(err, domain.ErrIssuanceLocked) {
		t.Fatalf("err = %v, want ErrIssuanceLocked", err)
	}
}

func TestCreateFromPurchase_LockReleased(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("FREE88", 100, false)
	lk := newFakeLocker()
	uc := newCouponUC(repo, v, nil, lk)
	ctx := context.Background()

	// fails on amount, but the lock must still come back
	if _, err := uc.CreateFromPurchase(ctx, "FREE88", subscriptionProduct()); !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("err = %v", err)
	}
	if len(lk.held) != 0 {
		t.Fatalf("lock still held: %v", lk.held)
	}
}

func TestCreateFromPurchase_TransactionalPath(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("TXPATH1", 300, false)
	tm := &passTM{}
	uc := newCouponUC(repo, v, tm, nil)

	if _, err := uc.CreateFromPurchase(context.Background(), "TXPATH1", subscriptionProduct()); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tm.calls != 1 {
		t.Fatalf("tm calls = %d", tm.calls)
	}

	// a flag failure inside the transaction aborts the whole issuance
	v.put("TXPATH2", 300, false)
	v.failMark = errors.New("flag write refused")
	if _, err := uc.CreateFromPurchase(context.Background(), "TXPATH2", subscriptionProduct()); err == nil {
		t.Fatal("expected error from in-tx flag failure")
	}
}

func TestCreateFromPurchase_PartialFailureReturnsCoupon(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	v := newFakeVerifier()
	v.put("HALF33", 300, false)
	v.failMark = errors.New("remote api down")
	uc := newCouponUC(repo, v, nil, nil)

	// without a shared transaction the buyer still gets their coupon;
	// the stuck flag is left for reconciliation
	c, err := uc.CreateFromPurchase(context.Background(), "HALF33", subscriptionProduct())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c == nil || c.Code != "HALF33" {
		t.Fatalf("coupon = %+v", c)
	}
	if v.redeemed("HALF33") {
		t.Fatal("purchase unexpectedly marked redeemed")
	}
}

func TestCouponUpdate(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	uc := newCouponUC(repo, newFakeVerifier(), nil, nil)
	ctx := context.Background()
	if _, err := uc.Create(ctx, CouponInput{Code: "EDIT1", Coins: 5, Type: model.CouponTypeSingle, Validity: testValidity}); err != nil {
		t.Fatalf("create: %v", err)
	}

	coins := 99
	legacy := model.CouponType("certain amount")
	limit := 4
	if err := uc.Update(ctx, "edit1", repository.CouponPatch{Coins: &coins, Type: &legacy, RedeemLimit: &limit}); err != nil {
		t.Fatalf("update: %v", err)
	}
	c, _ := uc.Get(ctx, "EDIT1")
	if c.Coins != 99 {
		t.Fatalf("coins = %d", c.Coins)
	}

	bad := model.CouponType("bogus")
	if err := uc.Update(ctx, "EDIT1", repository.CouponPatch{Type: &bad}); !errors.Is(err, domain.ErrInvalidCouponType) {
		t.Fatalf("bad type err = %v", err)
	}
	zero := 0
	if err := uc.Update(ctx, "EDIT1", repository.CouponPatch{RedeemLimit: &zero}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero limit err = %v", err)
	}
}

func TestCouponDeleteBatch(t *testing.T) {
	t.Parallel()

	repo := memory.NewCouponRepo()
	uc := newCouponUC(repo, newFakeVerifier(), nil, nil)
	ctx := context.Background()
	for _, code := range []string{"DEL01", "DEL02", "KEEP1"} {
		if _, err := uc.Create(ctx, CouponInput{Code: code, Coins: 1, Type: model.CouponTypeMultiple, Validity: testValidity}); err != nil {
			t.Fatalf("create %s: %v", code, err)
		}
	}

	if err := uc.DeleteBatch(ctx, []string{"del01", " DEL02 ", "", "  "}); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	left, _ := uc.List(ctx)
	if len(left) != 1 || left[0].Code != "KEEP1" {
		t.Fatalf("remaining = %+v", left)
	}

	// all-blank input is a no-op
	if err := uc.DeleteBatch(ctx, []string{"", " "}); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

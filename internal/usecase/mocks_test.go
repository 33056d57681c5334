//go:build !integration

package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/memory"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fixedClock pins a usecase to a deterministic instant.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// hookedCouponRepo wraps the in-memory repo and lets a test override
// single calls to simulate races and store failures.
type hookedCouponRepo struct {
	*memory.CouponRepo
	redeemFn func(ctx context.Context, tx repository.Tx, code string, newNote *string) (*model.Coupon, error)
}

func (r *hookedCouponRepo) Redeem(ctx context.Context, tx repository.Tx, code string, newNote *string) (*model.Coupon, error) {
	if r.redeemFn != nil {
		return r.redeemFn(ctx, tx, code, newNote)
	}
	return r.CouponRepo.Redeem(ctx, tx, code, newNote)
}

// fakeVerifier is an in-memory PaymentVerifier with failure hooks.
type fakeVerifier struct {
	mu        sync.Mutex
	purchases map[string]*model.Purchase
	failMark  error
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{purchases: make(map[string]*model.Purchase)}
}

func (v *fakeVerifier) put(txnID string, amount int64, redeemed bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.purchases[txnID] = &model.Purchase{ID: "p-" + txnID, TxnID: txnID, Amount: amount, IsRedeemed: redeemed}
}

func (v *fakeVerifier) Name() string { return "fake" }

func (v *fakeVerifier) Verify(_ context.Context, _ repository.Tx, txnID string) (*model.Purchase, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.purchases[txnID]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (v *fakeVerifier) MarkRedeemed(_ context.Context, _ repository.Tx, txnID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failMark != nil {
		return v.failMark
	}
	p, ok := v.purchases[txnID]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.IsRedeemed = true
	return nil
}

func (v *fakeVerifier) redeemed(txnID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.purchases[txnID]
	return ok && p.IsRedeemed
}

// fakeLocker tracks held keys; set busy to refuse every acquisition.
type fakeLocker struct {
	mu   sync.Mutex
	busy bool
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return "", domain.ErrIssuanceLocked
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrIssuanceLocked
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// passTM runs the body with a marker tx so the transactional branch is
// exercised without a database.
type txMarker struct{}

type passTM struct {
	calls int
}

func (m *passTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, txMarker{})
}

func mustCreateCoupon(t *testing.T, repo repository.CouponRepository, c *model.Coupon) {
	t.Helper()
	if err := repo.Create(context.Background(), repository.NoTX, c); err != nil {
		t.Fatalf("seed coupon %s: %v", c.Code, err)
	}
}

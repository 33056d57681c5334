package payment

import (
	"context"
	"strings"
	"sync"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/adapter"
	"coinshop-coupons/internal/domain/ports/repository"
)

var _ adapter.PaymentVerifier = (*NoopVerifier)(nil)

// NoopVerifier is a simple in-memory verifier to use in tests.
type NoopVerifier struct {
	mu        sync.Mutex
	purchases map[string]*model.Purchase
}

func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{purchases: make(map[string]*model.Purchase)}
}

func (v *NoopVerifier) Name() string { return "noop" }

// Put seeds a purchase record.
func (v *NoopVerifier) Put(p *model.Purchase) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := *p
	v.purchases[strings.ToUpper(p.TxnID)] = &cp
}

func (v *NoopVerifier) Verify(ctx context.Context, _ repository.Tx, txnID string) (*model.Purchase, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.purchases[strings.ToUpper(txnID)]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (v *NoopVerifier) MarkRedeemed(ctx context.Context, _ repository.Tx, txnID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.purchases[strings.ToUpper(txnID)]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.IsRedeemed = true
	return nil
}

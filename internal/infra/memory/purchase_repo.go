package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

type PurchaseRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Purchase // keyed by uppercased txn id
}

func NewPurchaseRepo() *PurchaseRepo {
	return &PurchaseRepo{store: make(map[string]*model.Purchase)}
}

func (m *PurchaseRepo) FindByTxnID(ctx context.Context, tx repository.Tx, txnID string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[strings.ToUpper(txnID)]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *PurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[strings.ToUpper(p.TxnID)] = &cp
	return nil
}

func (m *PurchaseRepo) MarkRedeemed(ctx context.Context, tx repository.Tx, txnID string, redeemed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[strings.ToUpper(txnID)]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.IsRedeemed = redeemed
	return nil
}

func (m *PurchaseRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Purchase, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedTime > out[j].ReceivedTime })
	return out, nil
}

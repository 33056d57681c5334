// Package memory holds mutex-guarded in-memory implementations of the
// persistence ports. They back dev mode, the seed tool and unit tests,
// and honor the same contracts as the Postgres repos, including the
// atomic allowance check on Redeem.
package memory

import (
	"context"
	"sort"
	"sync"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*CouponRepo)(nil)

type CouponRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Coupon
}

func NewCouponRepo() *CouponRepo {
	return &CouponRepo{store: make(map[string]*model.Coupon)}
}

func (m *CouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *CouponRepo) Create(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[c.Code]; exists {
		return domain.ErrDuplicateCode
	}
	cp := *c
	m.store[c.Code] = &cp
	return nil
}

func (m *CouponRepo) Update(ctx context.Context, tx repository.Tx, code string, patch repository.CouponPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.Coins != nil {
		c.Coins = *patch.Coins
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.ClearLimit {
		c.RedeemLimit = nil
	} else if patch.RedeemLimit != nil {
		v := *patch.RedeemLimit
		c.RedeemLimit = &v
	}
	if patch.Validity != nil {
		c.Validity = *patch.Validity
	}
	if patch.ShowAds != nil {
		c.ShowAds = *patch.ShowAds
	}
	if patch.Pkg != nil {
		c.Pkg = *patch.Pkg
	}
	if patch.ClearNote {
		c.Note = nil
	} else if patch.Note != nil {
		v := *patch.Note
		c.Note = &v
	}
	return nil
}

// Redeem checks the allowance and bumps the counter under one lock
// section, mirroring the guarded UPDATE of the Postgres repo.
func (m *CouponRepo) Redeem(ctx context.Context, tx repository.Tx, code string, newNote *string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}

	allowed := false
	switch c.Type {
	case model.CouponTypeSingle:
		allowed = c.RedeemCount < 1
	case model.CouponTypeCertainAmount:
		allowed = c.RedeemLimit == nil || c.RedeemCount < *c.RedeemLimit
	case model.CouponTypeMultiple:
		allowed = true
	}
	if !allowed {
		return nil, domain.ErrNotFound
	}

	c.RedeemCount++
	if newNote != nil {
		v := *newNote
		c.Note = &v
	}
	cp := *c
	return &cp, nil
}

func (m *CouponRepo) Delete(ctx context.Context, tx repository.Tx, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, code)
	return nil
}

func (m *CouponRepo) DeleteBatch(ctx context.Context, tx repository.Tx, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		delete(m.store, code)
	}
	return nil
}

func (m *CouponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Coupon, 0, len(m.store))
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	return out, nil
}

package model

// ProductType distinguishes what a storefront product grants.
type ProductType string

const (
	ProductTypeSubscription ProductType = "subscription"
	ProductTypeCoins        ProductType = "coins"
)

// Product describes the purchased item during issuance. The catalog
// itself lives in the storefront; issuance only needs the pricing and
// grant parameters, so the descriptor is passed in rather than loaded
// from this service's storage.
type Product struct {
	Type             ProductType
	Name             string
	Description      string
	RegularPrice     int64
	DiscountedPrice  int64 // 0 means no discount
	CoinAmount       int
	SubscriptionDays int // 0 means the 30-day default applies
}

// Price returns the effective sale price: the discounted price when one
// is set, the regular price otherwise.
func (p *Product) Price() int64 {
	if p.DiscountedPrice > 0 {
		return p.DiscountedPrice
	}
	return p.RegularPrice
}

package model

import "time"

// Purchase records a manually reported mobile-wallet payment awaiting
// (or having received) verification. Purchases are tracked
// independently of coupons; issuance reads one to mint a coupon and
// flips IsRedeemed afterwards. The field set mirrors what the wallet
// intake pipeline reports for each SMS-confirmed transfer.
type Purchase struct {
	ID             string // ULID, sortable by intake time
	TxnID          string
	Amount         int64 // BDT, whole taka
	IsRedeemed     bool
	Sender         *string
	MessageSource  string
	OriginalSMS    string
	ReceiverDevice string
	ReceiverEmail  string
	ReceivedTime   int64 // epoch ms
	SentTime       int64 // epoch ms
}

// ReceivedAt returns the intake instant as a time.Time.
func (p *Purchase) ReceivedAt() time.Time {
	return time.UnixMilli(p.ReceivedTime)
}

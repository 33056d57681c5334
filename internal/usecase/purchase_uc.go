package usecase

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

// Compile-time check
var _ PurchaseUseCase = (*purchaseUC)(nil)

// PurchaseUseCase maintains the ledger of manually reported wallet
// payments that issuance draws from.
type PurchaseUseCase interface {
	// Record stores a reported payment. Reporting the same transaction
	// id twice overwrites the earlier record.
	Record(ctx context.Context, in PurchaseInput) (*model.Purchase, error)
	Get(ctx context.Context, txnID string) (*model.Purchase, error)
	List(ctx context.Context) ([]*model.Purchase, error)
	// SetRedeemed manually toggles the consumed flag, mirroring the
	// dashboard action for correcting stuck records.
	SetRedeemed(ctx context.Context, txnID string, redeemed bool) error
}

// PurchaseInput is a reported wallet transfer as delivered by the SMS
// intake pipeline or typed in by an admin.
type PurchaseInput struct {
	TxnID          string
	Amount         int64
	Sender         *string
	MessageSource  string
	OriginalSMS    string
	ReceiverDevice string
	ReceiverEmail  string
	ReceivedTime   int64 // epoch ms; zero means now
	SentTime       int64 // epoch ms
}

type purchaseUC struct {
	purchases repository.PurchaseRepository
	log       *zerolog.Logger
	clock     func() time.Time
	entropy   *rand.Rand
}

func NewPurchaseUseCase(purchases repository.PurchaseRepository, logger *zerolog.Logger) *purchaseUC {
	return &purchaseUC{
		purchases: purchases,
		log:       logger,
		clock:     time.Now,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (u *purchaseUC) Record(ctx context.Context, in PurchaseInput) (*model.Purchase, error) {
	txn := model.NormalizeCode(in.TxnID)
	if len(txn) < 3 || in.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	received := in.ReceivedTime
	if received == 0 {
		received = u.clock().UnixMilli()
	}
	p := &model.Purchase{
		ID:             ulid.MustNew(ulid.Timestamp(u.clock()), u.entropy).String(),
		TxnID:          txn,
		Amount:         in.Amount,
		IsRedeemed:     false,
		Sender:         in.Sender,
		MessageSource:  in.MessageSource,
		OriginalSMS:    in.OriginalSMS,
		ReceiverDevice: in.ReceiverDevice,
		ReceiverEmail:  in.ReceiverEmail,
		ReceivedTime:   received,
		SentTime:       in.SentTime,
	}
	if err := u.purchases.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("txn_id", p.TxnID).Int64("amount", p.Amount).Msg("purchase recorded")
	return p, nil
}

func (u *purchaseUC) Get(ctx context.Context, txnID string) (*model.Purchase, error) {
	return u.purchases.FindByTxnID(ctx, repository.NoTX, model.NormalizeCode(txnID))
}

func (u *purchaseUC) List(ctx context.Context) ([]*model.Purchase, error) {
	return u.purchases.ListAll(ctx, repository.NoTX)
}

func (u *purchaseUC) SetRedeemed(ctx context.Context, txnID string, redeemed bool) error {
	return u.purchases.MarkRedeemed(ctx, repository.NoTX, model.NormalizeCode(txnID), redeemed)
}

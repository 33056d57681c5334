package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/security"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService // nil stores fields as plaintext
}

// NewPurchaseRepo builds the Postgres purchase ledger. When enc is
// non-nil the sender number and the raw SMS text are sealed before they
// reach the database.
func NewPurchaseRepo(pool *pgxpool.Pool, enc *security.EncryptionService) repository.PurchaseRepository {
	return &purchaseRepo{pool: pool, enc: enc}
}

const purchaseColumns = "id, txn_id, amount, is_redeemed, sender, message_source, original_sms, receiver_device, receiver_email, received_time, sent_time"

func (r *purchaseRepo) scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var p model.Purchase
	err := row.Scan(&p.ID, &p.TxnID, &p.Amount, &p.IsRedeemed, &p.Sender, &p.MessageSource, &p.OriginalSMS, &p.ReceiverDevice, &p.ReceiverEmail, &p.ReceivedTime, &p.SentTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	r.openSensitive(&p)
	return &p, nil
}

// sealSensitive encrypts the personal-data fields for storage.
func (r *purchaseRepo) sealSensitive(p *model.Purchase) (sender *string, sms string, err error) {
	sender, sms = p.Sender, p.OriginalSMS
	if r.enc == nil {
		return sender, sms, nil
	}
	if sms != "" {
		if sms, err = r.enc.Encrypt(sms); err != nil {
			return nil, "", err
		}
	}
	if p.Sender != nil && *p.Sender != "" {
		sealed, err := r.enc.Encrypt(*p.Sender)
		if err != nil {
			return nil, "", err
		}
		sender = &sealed
	}
	return sender, sms, nil
}

// openSensitive decrypts in place. Rows written before encryption was
// enabled fail to decrypt and are passed through untouched.
func (r *purchaseRepo) openSensitive(p *model.Purchase) {
	if r.enc == nil {
		return
	}
	if p.OriginalSMS != "" {
		if plain, err := r.enc.Decrypt(p.OriginalSMS); err == nil {
			p.OriginalSMS = plain
		}
	}
	if p.Sender != nil && *p.Sender != "" {
		if plain, err := r.enc.Decrypt(*p.Sender); err == nil {
			p.Sender = &plain
		}
	}
}

func (r *purchaseRepo) FindByTxnID(ctx context.Context, tx repository.Tx, txnID string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE upper(txn_id) = upper($1)`
	row, err := pickRow(ctx, r.pool, tx, q, txnID)
	if err != nil {
		return nil, err
	}
	return r.scanPurchase(row)
}

// Save upserts by transaction id so a re-reported SMS refreshes the
// existing record instead of duplicating it.
func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (id, txn_id, amount, is_redeemed, sender, message_source, original_sms, receiver_device, receiver_email, received_time, sent_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (txn_id) DO UPDATE SET
  amount = EXCLUDED.amount,
  sender = EXCLUDED.sender,
  message_source = EXCLUDED.message_source,
  original_sms = EXCLUDED.original_sms,
  receiver_device = EXCLUDED.receiver_device,
  receiver_email = EXCLUDED.receiver_email,
  received_time = EXCLUDED.received_time,
  sent_time = EXCLUDED.sent_time
`
	sender, sms, err := r.sealSensitive(p)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.TxnID, p.Amount, p.IsRedeemed, sender, p.MessageSource, sms, p.ReceiverDevice, p.ReceiverEmail, p.ReceivedTime, p.SentTime,
	)
	return err
}

func (r *purchaseRepo) MarkRedeemed(ctx context.Context, tx repository.Tx, txnID string, redeemed bool) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE purchases SET is_redeemed = $2 WHERE upper(txn_id) = upper($1)`, txnID, redeemed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (r *purchaseRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Purchase, error) {
	rows, err := querySQL(ctx, r.pool, tx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY received_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		p, err := r.scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

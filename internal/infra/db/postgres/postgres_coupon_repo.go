package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) repository.CouponRepository {
	return &couponRepo{pool: pool}
}

const couponColumns = "code, coins, type, redeem_limit, redeem_count, validity, show_ads, pkg, note, created"

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	var rawType string
	err := row.Scan(&c.Code, &c.Coins, &rawType, &c.RedeemLimit, &c.RedeemCount, &c.Validity, &c.ShowAds, &c.Pkg, &c.Note, &c.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	// Legacy rows may carry the older "certain amount"/"certain"
	// spellings; normalize at the boundary so the rule engine only ever
	// sees the canonical enum.
	typ, err := model.ParseCouponType(rawType)
	if err != nil {
		return nil, err
	}
	c.Type = typ
	return &c, nil
}

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	q := fmt.Sprintf(`SELECT %s FROM coupons WHERE code = $1`, couponColumns)
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) Create(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (code, coins, type, redeem_limit, redeem_count, validity, show_ads, pkg, note, created)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.Code, c.Coins, string(c.Type), c.RedeemLimit, c.RedeemCount, c.Validity, c.ShowAds, c.Pkg, c.Note, c.Created,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *couponRepo) Update(ctx context.Context, tx repository.Tx, code string, patch repository.CouponPatch) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Coins != nil {
		add("coins", *patch.Coins)
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.ClearLimit {
		sets = append(sets, "redeem_limit = NULL")
	} else if patch.RedeemLimit != nil {
		add("redeem_limit", *patch.RedeemLimit)
	}
	if patch.Validity != nil {
		add("validity", *patch.Validity)
	}
	if patch.ShowAds != nil {
		add("show_ads", *patch.ShowAds)
	}
	if patch.Pkg != nil {
		add("pkg", *patch.Pkg)
	}
	if patch.ClearNote {
		sets = append(sets, "note = NULL")
	} else if patch.Note != nil {
		add("note", *patch.Note)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, code)
	q := fmt.Sprintf("UPDATE coupons SET %s WHERE code = $%d", strings.Join(sets, ", "), len(args))
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Redeem performs the guarded increment: the type-specific allowance
// check and the counter bump are one UPDATE, so concurrent redeemers of
// the same coupon serialize on the row and at most the remaining
// allowance succeeds. The legacy type spellings are included in the
// guard so old rows stay redeemable.
func (r *couponRepo) Redeem(ctx context.Context, tx repository.Tx, code string, newNote *string) (*model.Coupon, error) {
	q := fmt.Sprintf(`
UPDATE coupons
   SET redeem_count = redeem_count + 1,
       note = COALESCE($2, note)
 WHERE code = $1
   AND (
        (type = 'single' AND redeem_count < 1)
     OR (type IN ('certain_amount', 'certain amount', 'certain')
         AND (redeem_limit IS NULL OR redeem_count < redeem_limit))
     OR type = 'multiple'
   )
RETURNING %s
`, couponColumns)
	row, err := pickRow(ctx, r.pool, tx, q, code, newNote)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) Delete(ctx context.Context, tx repository.Tx, code string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM coupons WHERE code = $1`, code)
	return err
}

func (r *couponRepo) DeleteBatch(ctx context.Context, tx repository.Tx, codes []string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM coupons WHERE code = ANY($1)`, codes)
	return err
}

func (r *couponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	q := fmt.Sprintf(`SELECT %s FROM coupons ORDER BY created DESC`, couponColumns)
	rows, err := querySQL(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

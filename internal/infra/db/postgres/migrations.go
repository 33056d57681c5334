package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// schema is applied on startup. Statements are idempotent so a restart
// against an already-migrated database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS coupons (
		code         TEXT PRIMARY KEY,
		coins        INTEGER NOT NULL DEFAULT 0,
		type         TEXT NOT NULL,
		redeem_limit INTEGER,
		redeem_count INTEGER NOT NULL DEFAULT 0,
		validity     BIGINT NOT NULL,
		show_ads     BOOLEAN NOT NULL DEFAULT FALSE,
		pkg          TEXT NOT NULL DEFAULT '',
		note         TEXT,
		created      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id              TEXT PRIMARY KEY,
		txn_id          TEXT NOT NULL UNIQUE,
		amount          BIGINT NOT NULL,
		is_redeemed     BOOLEAN NOT NULL DEFAULT FALSE,
		sender          TEXT,
		message_source  TEXT NOT NULL DEFAULT '',
		original_sms    TEXT NOT NULL DEFAULT '',
		receiver_device TEXT NOT NULL DEFAULT '',
		receiver_email  TEXT NOT NULL DEFAULT '',
		received_time   BIGINT NOT NULL,
		sent_time       BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coupons_created ON coupons (created DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_received ON purchases (received_time DESC)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function
// within a database transaction, passing the underlying transaction
// handle via `tx`.
//
// Use-case interfaces stay clean (no transaction types leaking out),
// while repository methods that accept a Tx can detect one and run
// their statements on the tx-bound executor. The concrete type of the
// handle is infra-defined (pgx.Tx for Postgres); repositories MUST
// gracefully accept nil for the non-transactional path.
//
// Issuance from a verified purchase is the one flow that needs this:
// "create coupon" and "mark purchase redeemed" commit or roll back
// together when both records live in the same store.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcraft/storefront/internal/domain/checkout"
	"github.com/shopcraft/storefront/internal/domain/promo"
)

// Postgres SQLSTATE codes that make a transaction worth one more attempt.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// txBeginner starts transactions. *pgxpool.Pool satisfies it.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// txManager begins, commits, and rolls back transactions on a pool. It makes
// at most one retry when the database aborts the transaction with a
// serialization failure or deadlock; a second loss surfaces as ErrTxConflict.
type txManager struct {
	pool txBeginner
	opts pgx.TxOptions
}

func (m *txManager) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	err := m.attempt(ctx, fn)
	if !retryable(err) {
		return err
	}

	if err := m.attempt(ctx, fn); err != nil {
		if retryable(err) {
			return errors.Wrap(ErrTxConflict, err.Error())
		}
		return err
	}
	return nil
}

func (m *txManager) attempt(ctx context.Context, fn func(tx pgx.Tx) error) (txErr error) {
	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Wrapf(txErr, "rollback also failed: %v", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}

// PromoTxManager implements promo.TxManager: attach transactions run at the
// default isolation, relying on the promo row lock for serialization.
type PromoTxManager struct {
	m txManager
}

// NewPromoTxManager returns a PromoTxManager on the given pool.
func NewPromoTxManager(pool *pgxpool.Pool) *PromoTxManager {
	return &PromoTxManager{m: txManager{pool: pool}}
}

// WithinTx runs fn against promo and cart repositories bound to one
// transaction.
func (p *PromoTxManager) WithinTx(ctx context.Context, fn func(r promo.Repos) error) error {
	return p.m.withinTx(ctx, func(tx pgx.Tx) error {
		return fn(promo.Repos{
			Carts:  &CartRepository{db: tx},
			Promos: &PromoRepository{db: tx},
		})
	})
}

// CheckoutTxManager implements checkout.TxManager. Checkout runs serializable,
// the strongest isolation the store offers, so a concurrent cart mutation can
// never be half-observed.
type CheckoutTxManager struct {
	m txManager
}

// NewCheckoutTxManager returns a CheckoutTxManager on the given pool.
func NewCheckoutTxManager(pool *pgxpool.Pool) *CheckoutTxManager {
	return &CheckoutTxManager{m: txManager{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: pgx.Serializable},
	}}
}

// WithinTx runs fn against cart and order repositories bound to one
// serializable transaction.
func (c *CheckoutTxManager) WithinTx(ctx context.Context, fn func(r checkout.Repos) error) error {
	return c.m.withinTx(ctx, func(tx pgx.Tx) error {
		return fn(checkout.Repos{
			Carts:  &CartRepository{db: tx},
			Orders: &OrderRepository{db: tx},
		})
	})
}

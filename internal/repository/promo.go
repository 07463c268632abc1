package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcraft/storefront/internal/domain/promo"
)

const (
	getPromoByNameSQL = `SELECT id, name, discount, usage_limit, usage_count, active, applies_to_all
		FROM promo_codes WHERE name = $1`

	// FOR UPDATE serializes concurrent check-then-increment on the same code:
	// read-committed alone would let two attaches both observe a free slot.
	getPromoByNameForUpdateSQL = getPromoByNameSQL + ` FOR UPDATE`

	getPromoProductsSQL = `SELECT product_id FROM promo_products
		WHERE promo_id = $1 ORDER BY product_id`

	incrementPromoUsageSQL = `UPDATE promo_codes SET usage_count = usage_count + 1
		WHERE id = $1`

	createPromoSQL = `INSERT INTO promo_codes (name, discount, usage_limit, active, applies_to_all)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	insertPromoProductSQL = `INSERT INTO promo_products (promo_id, product_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	listPromosSQL = `SELECT id, name, discount, usage_limit, usage_count, active, applies_to_all
		FROM promo_codes ORDER BY id`
)

const uniqueViolation = "23505"

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	db DB
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PromoRepository) WithTx(tx pgx.Tx) *PromoRepository {
	return &PromoRepository{db: tx}
}

// GetByName looks up a code by its exact name.
// Returns promo.ErrInvalid when no such code exists.
func (r *PromoRepository) GetByName(ctx context.Context, name string) (*promo.Code, error) {
	return r.getByName(ctx, name, getPromoByNameSQL)
}

// GetByNameForUpdate is GetByName holding a row lock on the code row until
// the surrounding transaction ends.
func (r *PromoRepository) GetByNameForUpdate(ctx context.Context, name string) (*promo.Code, error) {
	return r.getByName(ctx, name, getPromoByNameForUpdateSQL)
}

func (r *PromoRepository) getByName(ctx context.Context, name, sql string) (*promo.Code, error) {
	rows, err := r.db.Query(ctx, sql, name)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", name, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalid
		}
		return nil, fmt.Errorf("finding promo code %q: %w", name, err)
	}

	if err := r.loadProducts(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUsage adds one redemption to the code's usage counter.
func (r *PromoRepository) IncrementUsage(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, incrementPromoUsageSQL, id); err != nil {
		return fmt.Errorf("incrementing usage for promo %d: %w", id, err)
	}
	return nil
}

// Create persists a new code with its applicability set. A duplicate name
// maps to promo.ErrAlreadyExists.
func (r *PromoRepository) Create(ctx context.Context, c *promo.Code) error {
	err := r.db.QueryRow(ctx, createPromoSQL,
		c.Name, c.Discount, c.UsageLimit, c.Active, c.AppliesToAll,
	).Scan(&c.ID)
	if err != nil {
		if isSQLState(err, uniqueViolation) {
			return promo.ErrAlreadyExists
		}
		return fmt.Errorf("creating promo code %q: %w", c.Name, err)
	}

	if c.AppliesToAll {
		return nil
	}
	for _, productID := range c.ProductIDs {
		if _, err := r.db.Exec(ctx, insertPromoProductSQL, c.ID, productID); err != nil {
			return fmt.Errorf("linking promo %d to product %d: %w", c.ID, productID, err)
		}
	}
	return nil
}

// Update applies the non-nil fields of upd to the code and returns the
// updated row. Returns promo.ErrNotFound for an unknown id.
func (r *PromoRepository) Update(ctx context.Context, id int64, upd promo.Update) (*promo.Code, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	args = append(args, id)

	if upd.Discount != nil {
		args = append(args, *upd.Discount)
		sets = append(sets, fmt.Sprintf("discount = $%d", len(args)))
	}
	if upd.UsageLimit != nil {
		args = append(args, *upd.UsageLimit)
		sets = append(sets, fmt.Sprintf("usage_limit = $%d", len(args)))
	}
	if upd.Active != nil {
		args = append(args, *upd.Active)
		sets = append(sets, fmt.Sprintf("active = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.getByID(ctx, id)
	}

	sql := fmt.Sprintf(`UPDATE promo_codes SET %s WHERE id = $1
		RETURNING id, name, discount, usage_limit, usage_count, active, applies_to_all`,
		strings.Join(sets, ", "))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("updating promo %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("updating promo %d: %w", id, err)
	}

	if err := r.loadProducts(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all codes, applicability sets included, ordered by id.
func (r *PromoRepository) List(ctx context.Context) ([]promo.Code, error) {
	rows, err := r.db.Query(ctx, listPromosSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promo codes: %w", err)
	}

	codes, err := pgx.CollectRows(rows, scanPromoCode)
	if err != nil {
		return nil, fmt.Errorf("scanning promo codes: %w", err)
	}

	for i := range codes {
		if err := r.loadProducts(ctx, &codes[i]); err != nil {
			return nil, err
		}
	}
	return codes, nil
}

func (r *PromoRepository) getByID(ctx context.Context, id int64) (*promo.Code, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, discount, usage_limit, usage_count, active, applies_to_all
		FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting promo %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("getting promo %d: %w", id, err)
	}

	if err := r.loadProducts(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PromoRepository) loadProducts(ctx context.Context, c *promo.Code) error {
	if c.AppliesToAll {
		return nil
	}

	rows, err := r.db.Query(ctx, getPromoProductsSQL, c.ID)
	if err != nil {
		return fmt.Errorf("loading products for promo %d: %w", c.ID, err)
	}

	c.ProductIDs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return fmt.Errorf("scanning products for promo %d: %w", c.ID, err)
	}
	return nil
}

func scanPromoCode(row pgx.CollectableRow) (promo.Code, error) {
	var (
		c          promo.Code
		limit, cnt int32
	)
	err := row.Scan(&c.ID, &c.Name, &c.Discount, &limit, &cnt, &c.Active, &c.AppliesToAll)
	c.UsageLimit = int(limit)
	c.UsageCount = int(cnt)
	return c, err
}

func isSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopcraft/storefront/internal/domain/cart"
	"github.com/shopcraft/storefront/internal/domain/product"
)

const (
	// Insertion into carts is idempotent: the unique index on user_id plus
	// DO NOTHING guarantees at most one cart per user even under races.
	ensureCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	getCartSQL = `SELECT id, promo_code_id FROM carts WHERE user_id = $1`

	getCartForUpdateSQL = `SELECT id, promo_code_id FROM carts
		WHERE user_id = $1 FOR UPDATE`

	// Items join the live catalog so prices reflect the latest committed
	// state; a vanished product shows up through the LEFT JOIN as NULLs.
	getCartItemsSQL = `SELECT ci.id, ci.product_id, ci.quantity, p.name, p.price
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	// Upsert accumulates quantity for an existing (cart, product) pair
	// atomically at the storage layer, so two rapid adds cannot lose one.
	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		SELECT c.id, $2, $3 FROM carts c WHERE c.user_id = $1
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	setItemQuantitySQL = `UPDATE cart_items ci SET quantity = $3
		FROM carts c
		WHERE ci.id = $2 AND ci.cart_id = c.id AND c.user_id = $1`

	deleteItemSQL = `DELETE FROM cart_items ci
		USING carts c
		WHERE ci.id = $2 AND ci.cart_id = c.id AND c.user_id = $1`

	// Item removal and promo detachment as one statement: clear can never
	// leave a promo reference on an emptied cart.
	clearCartSQL = `WITH target AS (
			SELECT id FROM carts WHERE user_id = $1
		), removed AS (
			DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM target)
		)
		UPDATE carts SET promo_code_id = NULL
		WHERE id IN (SELECT id FROM target)`

	setCartPromoSQL = `UPDATE carts SET promo_code_id = $2 WHERE id = $1`
)

// foreignKeyViolation is the SQLSTATE raised when a cart item references a
// product missing from the catalog.
const foreignKeyViolation = "23503"

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db DB
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CartRepository) WithTx(tx pgx.Tx) *CartRepository {
	return &CartRepository{db: tx}
}

// GetOrCreate returns the user's cart with items and current prices, creating
// an empty cart on first access.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (cart.Cart, error) {
	if _, err := r.db.Exec(ctx, ensureCartSQL, userID); err != nil {
		return cart.Cart{}, fmt.Errorf("ensuring cart for user %d: %w", userID, err)
	}
	return r.load(ctx, userID, getCartSQL)
}

// GetForUpdate loads the user's cart holding a row lock on the cart row until
// the surrounding transaction ends. The cart is created first if absent so
// checkout and attach always have a row to lock.
func (r *CartRepository) GetForUpdate(ctx context.Context, userID int64) (cart.Cart, error) {
	if _, err := r.db.Exec(ctx, ensureCartSQL, userID); err != nil {
		return cart.Cart{}, fmt.Errorf("ensuring cart for user %d: %w", userID, err)
	}
	return r.load(ctx, userID, getCartForUpdateSQL)
}

func (r *CartRepository) load(ctx context.Context, userID int64, cartSQL string) (cart.Cart, error) {
	c := cart.Cart{UserID: userID}

	err := r.db.QueryRow(ctx, cartSQL, userID).Scan(&c.ID, &c.PromoCodeID)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("loading cart for user %d: %w", userID, err)
	}

	rows, err := r.db.Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("loading cart items: %w", err)
	}

	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("scanning cart items: %w", err)
	}
	return c, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it    cart.Item
		name  *string
		price *decimal.Decimal
	)
	if err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &name, &price); err != nil {
		return cart.Item{}, err
	}
	if price == nil {
		it.Unavailable = true
		return it, nil
	}
	it.ProductName = *name
	it.UnitPrice = *price
	return it, nil
}

// AddItem upserts a line item, accumulating quantity for an existing product.
// A product id missing from the catalog maps to product.ErrNotFound.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID int64, qty int) error {
	if _, err := r.db.Exec(ctx, ensureCartSQL, userID); err != nil {
		return fmt.Errorf("ensuring cart for user %d: %w", userID, err)
	}

	if _, err := r.db.Exec(ctx, addCartItemSQL, userID, productID, qty); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return product.ErrNotFound
		}
		return fmt.Errorf("adding product %d to cart: %w", productID, err)
	}
	return nil
}

// SetItemQuantity overwrites an item's quantity; qty <= 0 removes the item.
// An item absent from the user's cart reports cart.ErrItemNotFound whether it
// does not exist or belongs to someone else.
func (r *CartRepository) SetItemQuantity(ctx context.Context, userID, itemID int64, qty int) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if qty <= 0 {
		tag, err = r.db.Exec(ctx, deleteItemSQL, userID, itemID)
	} else {
		tag, err = r.db.Exec(ctx, setItemQuantitySQL, userID, itemID, qty)
	}
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear removes all items and detaches any promo reference. A missing or
// already-empty cart is a no-op success.
func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %d: %w", userID, err)
	}
	return nil
}

// SetPromo attaches a promo reference to the cart.
func (r *CartRepository) SetPromo(ctx context.Context, cartID, promoID int64) error {
	if _, err := r.db.Exec(ctx, setCartPromoSQL, cartID, promoID); err != nil {
		return fmt.Errorf("setting promo on cart %d: %w", cartID, err)
	}
	return nil
}

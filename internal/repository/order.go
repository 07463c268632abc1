package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcraft/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(user_id, status, total_amount, promo_code_id,
		 customer_name, customer_phone, customer_email, delivery_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	orderColumns = `id, user_id, created_at, status, total_amount, promo_code_id,
		customer_name, customer_phone, customer_email, delivery_address`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByIDOwnedSQL = getOrderByIDSQL + ` AND user_id = $2`

	listOrdersByOwnerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC`

	getOrderItemsSQL = `SELECT id, product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`

	// The status list in the WHERE clause repeats the lifecycle guard at the
	// storage layer so two racing transitions cannot both win.
	updateOrderStatusSQL = `UPDATE orders SET status = $2
		WHERE id = $1 AND status::text = ANY($3)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Orders
// are append-only: nothing here ever rewrites totals or item prices.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *OrderRepository) WithTx(tx pgx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create persists the order row and bulk-copies its items, filling in the
// generated ids and creation timestamp. Callers needing atomicity with other
// writes run this inside a transaction via WithTx.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.db.QueryRow(ctx, createOrderSQL,
		o.UserID, string(o.Status), o.TotalAmount, o.PromoCodeID,
		o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.DeliveryAddress,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order for user %d: %w", o.UserID, err)
	}

	if len(o.Items) == 0 {
		return nil
	}

	_, err = r.db.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_id", "quantity", "price"},
		pgx.CopyFromSlice(len(o.Items), func(i int) ([]any, error) {
			it := o.Items[i]
			return []any{o.ID, it.ProductID, it.Quantity, it.Price}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("creating items for order %d: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with items eagerly loaded. A non-nil ownerID
// folds ownership mismatches into order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id int64, ownerID *int64) (*order.Order, error) {
	var rows pgx.Rows
	var err error
	if ownerID != nil {
		rows, err = r.db.Query(ctx, getOrderByIDOwnedSQL, id, *ownerID)
	} else {
		rows, err = r.db.Query(ctx, getOrderByIDSQL, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByOwner returns the user's orders, items included, newest first with a
// stable id tiebreak.
func (r *OrderRepository) ListByOwner(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listOrdersByOwnerSQL, userID)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listAllOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateStatus moves the order along the lifecycle. The allowed source states
// are derived from the state machine and enforced in the UPDATE itself.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, next order.Status) error {
	if !next.Valid() {
		return order.ErrInvalidTransition
	}

	from := make([]string, 0, 2)
	for _, s := range []order.Status{order.StatusPending, order.StatusProcessing} {
		if s.CanTransition(next) {
			from = append(from, string(s))
		}
	}
	if len(from) == 0 {
		return order.ErrInvalidTransition
	}

	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, string(next), from)
	if err != nil {
		return fmt.Errorf("updating status of order %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: distinguish a missing order from a forbidden move.
	var current string
	err = r.db.QueryRow(ctx, getOrderStatusSQL, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("checking status of order %d: %w", id, err)
	}
	return order.ErrInvalidTransition
}

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.db.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading items for order %d: %w", o.ID, err)
	}

	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Price)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("scanning items for order %d: %w", o.ID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CreatedAt, &status, &o.TotalAmount, &o.PromoCodeID,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.DeliveryAddress,
	)
	o.Status = order.Status(status)
	return o, err
}

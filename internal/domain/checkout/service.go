package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopcraft/storefront/internal/domain/cart"
	"github.com/shopcraft/storefront/internal/domain/order"
)

// Sentinel errors for checkout validation.
var (
	// ErrEmptyCart rejects a checkout against a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidContact rejects a checkout with missing contact fields.
	ErrInvalidContact = errors.New("contact information is incomplete")
)

// ProductUnavailableError indicates a cart item whose product vanished from
// the catalog between being added and checkout.
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is no longer available", e.ProductID)
}

// ContactInfo carries the delivery details supplied at checkout time. They
// are recorded verbatim on the order.
type ContactInfo struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

func (c ContactInfo) validate() error {
	if c.Name == "" || c.Phone == "" || c.Email == "" || c.Address == "" {
		return ErrInvalidContact
	}
	return nil
}

// Repos bundles the repositories that participate in a checkout transaction.
type Repos struct {
	Carts  cart.Repository
	Orders order.Repository
}

// TxManager runs a function against transaction-bound repositories at the
// store's strongest isolation. The function's error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// Service converts a mutable cart into an immutable order as one unit of
// work: price the items, freeze the total, persist order and items, clear
// the cart. Either all of it commits or none of it does.
type Service struct {
	tx TxManager
}

// NewService creates a checkout Service that runs through tx.
func NewService(tx TxManager) *Service {
	return &Service{tx: tx}
}

// CreateFromCart checks out the user's cart.
//
// Within a single transaction it loads the cart with a row lock and each
// item's current catalog price, computes the total, creates the order in
// pending status carrying the cart's promo reference and the contact fields,
// freezes every item's unit price, and finally empties the cart. The cart's
// attached promo was already validated and consumed at attach time, so it is
// recorded without re-validation. The promo's discount value is kept for
// audit only; it is not subtracted from the total.
func (s *Service) CreateFromCart(ctx context.Context, userID int64, info ContactInfo) (*order.Order, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	var created *order.Order

	err := s.tx.WithinTx(ctx, func(r Repos) error {
		c, err := r.Carts.GetForUpdate(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		items := make([]order.Item, len(c.Items))
		for i, it := range c.Items {
			if it.Unavailable {
				return &ProductUnavailableError{ProductID: it.ProductID}
			}
			items[i] = order.Item{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.UnitPrice,
			}
			total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		o := &order.Order{
			UserID:          userID,
			Status:          order.StatusPending,
			TotalAmount:     total.Round(2),
			PromoCodeID:     c.PromoCodeID,
			CustomerName:    info.Name,
			CustomerPhone:   info.Phone,
			CustomerEmail:   info.Email,
			DeliveryAddress: info.Address,
			Items:           items,
		}
		if err := r.Orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if err := r.Carts.Clear(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

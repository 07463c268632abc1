package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	// ErrItemNotFound is returned when a cart item does not exist or does not
	// belong to the requesting user. Ownership mismatches deliberately look
	// identical to absence.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned when an add operation carries a
	// non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Cart is a user's mutable pre-checkout aggregate. At most one live cart
// exists per user; checkout leaves it as an empty shell rather than
// deleting it.
type Cart struct {
	ID          int64
	UserID      int64
	PromoCodeID *int64
	Items       []Item
}

// Item is one line of a cart. UnitPrice is the catalog's current price,
// resolved at read time; it is never persisted on the cart row, so price
// changes before checkout show up here immediately.
type Item struct {
	ID          int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int

	// Unavailable marks an item whose product no longer exists in the
	// catalog. Only set by reads that resolve prices.
	Unavailable bool
}

// Subtotal returns the sum of unit price times quantity across all items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Repository defines persistence operations for carts. All mutations commit
// before returning; there is no caching layer.
type Repository interface {
	// GetOrCreate returns the user's cart with items and current prices,
	// creating an empty cart when absent. Safe to call concurrently for the
	// same user: at most one cart is ever created.
	GetOrCreate(ctx context.Context, userID int64) (Cart, error)
	// AddItem upserts a line item: an existing (cart, product) row has its
	// quantity incremented by qty, otherwise a new row is inserted.
	AddItem(ctx context.Context, userID, productID int64, qty int) error
	// SetItemQuantity overwrites an item's quantity. qty <= 0 removes the
	// item. Returns ErrItemNotFound when the item is absent or owned by
	// another user.
	SetItemQuantity(ctx context.Context, userID, itemID int64, qty int) error
	// Clear removes all items and detaches any promo reference. Clearing an
	// empty or absent cart is a no-op success.
	Clear(ctx context.Context, userID int64) error
	// SetPromo attaches a promo code reference to the cart, overwriting any
	// previous reference.
	SetPromo(ctx context.Context, cartID, promoID int64) error
	// GetForUpdate loads the user's cart with items and current prices,
	// holding a row lock on the cart until the surrounding transaction ends.
	// Products that have disappeared from the catalog are returned with
	// Item.Unavailable set.
	GetForUpdate(ctx context.Context, userID int64) (Cart, error)
}

package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// Service validates cart mutations and delegates persistence to a Repository.
type Service struct {
	carts Repository
}

// NewService creates a cart Service backed by the given repository.
func NewService(carts Repository) *Service {
	return &Service{carts: carts}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID int64) (Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return Cart{}, errors.Wrap(err, "get or create cart")
	}
	return c, nil
}

// AddItem adds qty units of a product to the user's cart. Adding an already
// present product accumulates quantity instead of creating a duplicate line.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.carts.AddItem(ctx, userID, productID, qty); err != nil {
		return errors.Wrap(err, "add item")
	}
	return nil
}

// SetItemQuantity overwrites an item's quantity. A non-positive quantity is a
// removal, not an error.
func (s *Service) SetItemQuantity(ctx context.Context, userID, itemID int64, qty int) error {
	if err := s.carts.SetItemQuantity(ctx, userID, itemID, qty); err != nil {
		return errors.Wrap(err, "set item quantity")
	}
	return nil
}

// Clear empties the user's cart and detaches any promo reference. Idempotent.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

package promo

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for promo code validation. All four fold into a single
// user-facing "bad promo" condition at the HTTP boundary, each with its own
// reason string.
var (
	// ErrInvalid covers both an absent code and an inactive one, so callers
	// cannot probe which codes exist.
	ErrInvalid = errors.New("invalid or inactive promo code")
	// ErrLimitExceeded is returned when a capped code has no redemptions left.
	ErrLimitExceeded = errors.New("promo code usage limit exceeded")
	// ErrNotApplicable is returned when a product-restricted code matches
	// nothing in the cart.
	ErrNotApplicable = errors.New("promo code not applicable to any product in cart")
	// ErrAlreadyExists is returned when creating a code whose name is taken.
	ErrAlreadyExists = errors.New("promo code with this name already exists")
	// ErrNotFound is returned when a code referenced by id does not exist.
	ErrNotFound = errors.New("promo code not found")
)

// Code is a named, globally limited discount token. UsageCount only ever
// grows; the validator is its sole writer and increments it in the same
// transaction that certifies eligibility.
type Code struct {
	ID           int64
	Name         string
	Discount     decimal.Decimal
	UsageLimit   int
	UsageCount   int
	Active       bool
	AppliesToAll bool
	// ProductIDs is the explicit applicability set, populated only when
	// AppliesToAll is false.
	ProductIDs []int64
}

// Unlimited reports whether the code has no usage cap.
func (c Code) Unlimited() bool {
	return c.UsageLimit <= 0
}

// Exhausted reports whether a capped code has no redemptions left.
func (c Code) Exhausted() bool {
	return !c.Unlimited() && c.UsageCount >= c.UsageLimit
}

// AppliesTo reports whether the code can discount at least one of the given
// product ids.
func (c Code) AppliesTo(productIDs []int64) bool {
	if c.AppliesToAll {
		return true
	}
	applicable := make(map[int64]struct{}, len(c.ProductIDs))
	for _, id := range c.ProductIDs {
		applicable[id] = struct{}{}
	}
	for _, id := range productIDs {
		if _, ok := applicable[id]; ok {
			return true
		}
	}
	return false
}

// Update is a partial-update value object: each field is applied only when
// non-nil, independent of any reflection or dynamic merging.
type Update struct {
	Discount   *decimal.Decimal
	UsageLimit *int
	Active     *bool
}

// Repository provides lookup and mutation of promo codes.
type Repository interface {
	// GetByName returns the code with its applicability set, or ErrInvalid
	// when no such code exists.
	GetByName(ctx context.Context, name string) (*Code, error)
	// GetByNameForUpdate is GetByName holding a row lock on the code until
	// the surrounding transaction ends, serializing check-then-increment.
	GetByNameForUpdate(ctx context.Context, name string) (*Code, error)
	// IncrementUsage adds one redemption to the code's usage counter.
	IncrementUsage(ctx context.Context, id int64) error
	// Create persists a new code with its applicability set.
	Create(ctx context.Context, c *Code) error
	// Update applies the non-nil fields of upd to the code.
	Update(ctx context.Context, id int64, upd Update) (*Code, error)
	// List returns all codes, applicability sets included.
	List(ctx context.Context) ([]Code, error)
}

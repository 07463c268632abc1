package promo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/shopcraft/storefront/internal/domain/cart"
)

// Repos bundles the repositories that participate in an attach transaction.
type Repos struct {
	Carts  cart.Repository
	Promos Repository
}

// TxManager runs a function against transaction-bound repositories. The
// function's error rolls the transaction back; a nil return commits it.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// Validator decides promo applicability and consumes usage atomically.
//
// Usage accounting happens at attach time: a successful Attach increments the
// code's usage counter and records the code on the cart in one transaction.
// Checkout later trusts the recorded reference without re-validating, so a
// code deactivated between attach and checkout is still honored.
type Validator struct {
	tx TxManager
}

// NewValidator creates a Validator that runs attach transactions through tx.
func NewValidator(tx TxManager) *Validator {
	return &Validator{tx: tx}
}

// Attach validates the named code against the user's cart and, on success,
// consumes one usage and sets the cart's promo reference. The eligibility
// check, the counter increment, and the cart update commit or roll back
// together; the row lock taken by GetByNameForUpdate closes the window
// between check and increment under concurrent attaches.
//
// Attaching over a previously attached code overwrites the reference without
// refunding the old code's usage.
func (v *Validator) Attach(ctx context.Context, userID int64, codeName string) (*Code, error) {
	var attached *Code

	err := v.tx.WithinTx(ctx, func(r Repos) error {
		c, err := r.Carts.GetOrCreate(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}

		code, err := r.Promos.GetByNameForUpdate(ctx, codeName)
		if err != nil {
			return errors.Wrap(err, "lookup promo code")
		}
		if !code.Active {
			return ErrInvalid
		}
		if code.Exhausted() {
			return ErrLimitExceeded
		}

		productIDs := make([]int64, 0, len(c.Items))
		for _, it := range c.Items {
			productIDs = append(productIDs, it.ProductID)
		}
		if !code.AppliesTo(productIDs) {
			return ErrNotApplicable
		}

		if err := r.Promos.IncrementUsage(ctx, code.ID); err != nil {
			return errors.Wrap(err, "increment usage")
		}
		if err := r.Carts.SetPromo(ctx, c.ID, code.ID); err != nil {
			return errors.Wrap(err, "set cart promo")
		}

		code.UsageCount++
		attached = code
		return nil
	})
	if err != nil {
		return nil, err
	}

	return attached, nil
}

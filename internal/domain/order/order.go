package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order lookups and lifecycle transitions.
var (
	// ErrNotFound is returned when an order does not exist or belongs to a
	// different user; ownership mismatches deliberately look like absence.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a status change violates the
	// order lifecycle.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the lifecycle permits moving from s to next:
// pending -> processing -> completed, with cancelled reachable from pending
// or processing. Terminal states admit nothing.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Order is an immutable point-in-time snapshot produced by checkout.
// TotalAmount is frozen at creation and never recomputed; PromoCodeID is an
// audit reference, not an input to any later pricing.
type Order struct {
	ID          int64
	UserID      int64
	CreatedAt   time.Time
	Status      Status
	TotalAmount decimal.Decimal
	PromoCodeID *int64

	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string

	Items []Item
}

// Item is one line of an order. Price is the product's unit price captured at
// checkout time; it is write-once and never re-read from the catalog.
type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Repository defines persistence operations for finalized orders. Orders are
// append-only apart from the guarded status transitions.
type Repository interface {
	// Create persists the order and its items, filling in the order's ID and
	// CreatedAt.
	Create(ctx context.Context, o *Order) error
	// GetByID returns the order with items eagerly loaded. When ownerID is
	// non-nil, an owner mismatch is reported as ErrNotFound.
	GetByID(ctx context.Context, id int64, ownerID *int64) (*Order, error)
	// ListByOwner returns the user's orders, items included, newest first.
	ListByOwner(ctx context.Context, userID int64) ([]Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus moves the order along the lifecycle, rejecting transitions
	// that CanTransition forbids with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id int64, next Status) error
}

package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementation ---

type mockRepo struct {
	cart       Cart
	getErr     error
	addErr     error
	setErr     error
	clearErr   error
	addCalls   []addCall
	setCalls   []setCall
	clearCount int
}

type addCall struct {
	userID, productID int64
	qty               int
}

type setCall struct {
	userID, itemID int64
	qty            int
}

func (m *mockRepo) GetOrCreate(_ context.Context, _ int64) (Cart, error) {
	return m.cart, m.getErr
}

func (m *mockRepo) AddItem(_ context.Context, userID, productID int64, qty int) error {
	m.addCalls = append(m.addCalls, addCall{userID, productID, qty})
	return m.addErr
}

func (m *mockRepo) SetItemQuantity(_ context.Context, userID, itemID int64, qty int) error {
	m.setCalls = append(m.setCalls, setCall{userID, itemID, qty})
	return m.setErr
}

func (m *mockRepo) Clear(_ context.Context, _ int64) error {
	m.clearCount++
	return m.clearErr
}

func (m *mockRepo) SetPromo(_ context.Context, _, _ int64) error { return nil }

func (m *mockRepo) GetForUpdate(_ context.Context, _ int64) (Cart, error) {
	return m.cart, m.getErr
}

// --- Tests ---

func TestGet_ReturnsRepoCart(t *testing.T) {
	want := Cart{ID: 7, UserID: 42, Items: []Item{{ID: 1, ProductID: 3, Quantity: 2}}}
	svc := NewService(&mockRepo{cart: want})

	got, err := svc.Get(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGet_RepoError(t *testing.T) {
	repoErr := errors.New("boom")
	svc := NewService(&mockRepo{getErr: repoErr})

	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, repoErr)
}

func TestAddItem(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		wantErr error
	}{
		{name: "positive quantity", qty: 3},
		{name: "zero quantity", qty: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", qty: -1, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc := NewService(repo)

			err := svc.AddItem(context.Background(), 42, 10, tt.qty)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.addCalls, "repo must not be touched on invalid input")
				return
			}
			require.NoError(t, err)
			require.Len(t, repo.addCalls, 1)
			assert.Equal(t, addCall{42, 10, tt.qty}, repo.addCalls[0])
		})
	}
}

func TestSetItemQuantity_NonPositiveIsRemoval(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.SetItemQuantity(context.Background(), 42, 5, 0))
	require.NoError(t, svc.SetItemQuantity(context.Background(), 42, 5, -3))

	// Non-positive quantities pass through to the repo as removals.
	require.Len(t, repo.setCalls, 2)
	assert.Equal(t, setCall{42, 5, 0}, repo.setCalls[0])
	assert.Equal(t, setCall{42, 5, -3}, repo.setCalls[1])
}

func TestSetItemQuantity_NotFound(t *testing.T) {
	svc := NewService(&mockRepo{setErr: ErrItemNotFound})

	err := svc.SetItemQuantity(context.Background(), 42, 999, 1)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestClear_Idempotent(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.Clear(context.Background(), 42))
	require.NoError(t, svc.Clear(context.Background(), 42))
	assert.Equal(t, 2, repo.clearCount)
}

func TestSubtotal(t *testing.T) {
	c := Cart{Items: []Item{
		{UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2},
		{UnitPrice: decimal.RequireFromString("3.00"), Quantity: 1},
	}}

	assert.True(t, c.Subtotal().Equal(decimal.RequireFromString("13.00")),
		"got %s", c.Subtotal())
}

func TestSubtotal_Empty(t *testing.T) {
	assert.True(t, Cart{}.Subtotal().IsZero())
}

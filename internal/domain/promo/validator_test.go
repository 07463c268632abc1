package promo

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcraft/storefront/internal/domain/cart"
)

// --- Mock implementations ---

// mockTx runs the transactional function directly over the mock repos and
// remembers whether the function reported an error, standing in for a
// rollback.
type mockTx struct {
	repos      Repos
	rolledBack bool
}

func (m *mockTx) WithinTx(_ context.Context, fn func(r Repos) error) error {
	err := fn(m.repos)
	if err != nil {
		m.rolledBack = true
	}
	return err
}

type mockCartRepo struct {
	cart      cart.Cart
	promoSets []int64
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, _ int64) (cart.Cart, error) {
	return m.cart, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, _, _ int64, _ int) error { return nil }

func (m *mockCartRepo) SetItemQuantity(_ context.Context, _, _ int64, _ int) error { return nil }

func (m *mockCartRepo) Clear(_ context.Context, _ int64) error { return nil }

func (m *mockCartRepo) SetPromo(_ context.Context, _, promoID int64) error {
	m.promoSets = append(m.promoSets, promoID)
	return nil
}

func (m *mockCartRepo) GetForUpdate(_ context.Context, _ int64) (cart.Cart, error) {
	return m.cart, nil
}

type mockPromoRepo struct {
	code       *Code
	lookupErr  error
	incErr     error
	increments []int64
}

func (m *mockPromoRepo) GetByName(_ context.Context, _ string) (*Code, error) {
	return m.GetByNameForUpdate(context.Background(), "")
}

func (m *mockPromoRepo) GetByNameForUpdate(_ context.Context, _ string) (*Code, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	cp := *m.code
	return &cp, nil
}

func (m *mockPromoRepo) IncrementUsage(_ context.Context, id int64) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.increments = append(m.increments, id)
	return nil
}

func (m *mockPromoRepo) Create(_ context.Context, _ *Code) error { return nil }

func (m *mockPromoRepo) Update(_ context.Context, _ int64, _ Update) (*Code, error) {
	return nil, nil
}

func (m *mockPromoRepo) List(_ context.Context) ([]Code, error) { return nil, nil }

// --- Helpers ---

func newValidator(c cart.Cart, code *Code) (*Validator, *mockCartRepo, *mockPromoRepo, *mockTx) {
	carts := &mockCartRepo{cart: c}
	promos := &mockPromoRepo{code: code}
	tx := &mockTx{repos: Repos{Carts: carts, Promos: promos}}
	return NewValidator(tx), carts, promos, tx
}

func cartWithProducts(productIDs ...int64) cart.Cart {
	c := cart.Cart{ID: 1, UserID: 42}
	for i, id := range productIDs {
		c.Items = append(c.Items, cart.Item{ID: int64(i + 1), ProductID: id, Quantity: 1})
	}
	return c
}

// --- Tests ---

func TestAttach_Success(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Discount: decimal.NewFromInt(10),
		UsageLimit: 5, UsageCount: 2, Active: true, AppliesToAll: true}
	v, carts, promos, _ := newValidator(cartWithProducts(1, 2), code)

	attached, err := v.Attach(context.Background(), 42, "SAVE10")

	require.NoError(t, err)
	assert.Equal(t, 3, attached.UsageCount, "returned code reflects the consumed usage")
	assert.Equal(t, []int64{9}, promos.increments)
	assert.Equal(t, []int64{9}, carts.promoSets)
}

func TestAttach_Inactive(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Active: false, AppliesToAll: true}
	v, carts, promos, tx := newValidator(cartWithProducts(1), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.ErrorIs(t, err, ErrInvalid)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, promos.increments)
	assert.Empty(t, carts.promoSets)
}

func TestAttach_Unknown(t *testing.T) {
	carts := &mockCartRepo{cart: cartWithProducts(1)}
	promos := &mockPromoRepo{lookupErr: ErrInvalid}
	v := NewValidator(&mockTx{repos: Repos{Carts: carts, Promos: promos}})

	_, err := v.Attach(context.Background(), 42, "NOSUCH")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestAttach_LimitExceeded(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", UsageLimit: 3, UsageCount: 3,
		Active: true, AppliesToAll: true}
	v, _, promos, _ := newValidator(cartWithProducts(1), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.Empty(t, promos.increments, "exhausted code must not be consumed")
}

func TestAttach_UnlimitedNeverExhausts(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", UsageLimit: 0, UsageCount: 1000000,
		Active: true, AppliesToAll: true}
	v, _, _, _ := newValidator(cartWithProducts(1), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")
	require.NoError(t, err)
}

func TestAttach_NotApplicable(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Active: true,
		AppliesToAll: false, ProductIDs: []int64{77, 88}}
	v, _, promos, _ := newValidator(cartWithProducts(1, 2), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.ErrorIs(t, err, ErrNotApplicable)
	assert.Empty(t, promos.increments)
}

func TestAttach_RestrictedMatchesOneProduct(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Active: true,
		AppliesToAll: false, ProductIDs: []int64{2}}
	v, carts, _, _ := newValidator(cartWithProducts(1, 2, 3), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.NoError(t, err, "one overlapping product is enough")
	assert.Equal(t, []int64{9}, carts.promoSets)
}

func TestAttach_RestrictedEmptyCart(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Active: true,
		AppliesToAll: false, ProductIDs: []int64{2}}
	v, _, _, _ := newValidator(cartWithProducts(), code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")
	require.ErrorIs(t, err, ErrNotApplicable)
}

func TestAttach_OverwritesPreviousCode(t *testing.T) {
	prev := int64(5)
	c := cartWithProducts(1)
	c.PromoCodeID = &prev

	code := &Code{ID: 9, Name: "SAVE10", Active: true, AppliesToAll: true}
	v, carts, promos, _ := newValidator(c, code)

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.NoError(t, err)
	assert.Equal(t, []int64{9}, carts.promoSets, "new reference overwrites the old")
	assert.Equal(t, []int64{9}, promos.increments, "old code's usage is not refunded")
}

func TestAttach_IncrementFailureRollsBack(t *testing.T) {
	code := &Code{ID: 9, Name: "SAVE10", Active: true, AppliesToAll: true}
	v, carts, promos, tx := newValidator(cartWithProducts(1), code)
	promos.incErr = errors.New("db down")

	_, err := v.Attach(context.Background(), 42, "SAVE10")

	require.Error(t, err)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, carts.promoSets, "cart update must not survive a failed increment")
}

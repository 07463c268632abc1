package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopcraft/storefront/internal/domain/cart"
)

type cartItemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

type cartResponse struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"user_id"`
	PromoCodeID *int64             `json:"promo_code_id,omitempty"`
	Items       []cartItemResponse `json:"items"`
	Subtotal    float64            `json:"subtotal"`
}

func toCartResponse(c cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			Quantity:    it.Quantity,
		}
	}

	return cartResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		PromoCodeID: c.PromoCodeID,
		Items:       items,
		Subtotal:    c.Subtotal().InexactFloat64(),
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), mustUserID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	// Quantity is optional; a missing quantity means one unit.
	Quantity *int `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	userID := mustUserID(r)
	if err := h.carts.AddItem(r.Context(), userID, req.ProductID, qty); err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.respondCart(w, r, userID)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}

	var req updateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := mustUserID(r)
	if err := h.carts.SetItemQuantity(r.Context(), userID, itemID, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.respondCart(w, r, userID)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), mustUserID(r)); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

func (h *Handler) applyPromo(w http.ResponseWriter, r *http.Request) {
	var req applyPromoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := mustUserID(r)
	if _, err := h.validator.Attach(r.Context(), userID, req.Code); err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.respondCart(w, r, userID)
}

// respondCart returns the current cart state after a mutation.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, userID int64) {
	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(c))
}

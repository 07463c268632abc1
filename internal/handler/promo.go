package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shopcraft/storefront/internal/domain/promo"
)

type promoResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Discount     float64 `json:"discount"`
	UsageLimit   int     `json:"usage_limit"`
	UsageCount   int     `json:"usage_count"`
	Active       bool    `json:"active"`
	AppliesToAll bool    `json:"applies_to_all"`
	ProductIDs   []int64 `json:"applicable_product_ids,omitempty"`
}

func toPromoResponse(c promo.Code) promoResponse {
	return promoResponse{
		ID:           c.ID,
		Name:         c.Name,
		Discount:     c.Discount.InexactFloat64(),
		UsageLimit:   c.UsageLimit,
		UsageCount:   c.UsageCount,
		Active:       c.Active,
		AppliesToAll: c.AppliesToAll,
		ProductIDs:   c.ProductIDs,
	}
}

func (h *Handler) listPromos(w http.ResponseWriter, r *http.Request) {
	list, err := h.promos.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]promoResponse, len(list))
	for i, c := range list {
		resp[i] = toPromoResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

type createPromoRequest struct {
	Name       string  `json:"name"`
	Discount   float64 `json:"discount"`
	UsageLimit int     `json:"usage_limit"`
	ProductIDs []int64 `json:"applicable_product_ids"`
}

func (h *Handler) createPromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "promo code name is required")
		return
	}
	if req.Discount <= 0 {
		writeError(w, http.StatusBadRequest, "discount must be positive")
		return
	}
	// Unlimited is expressed as zero, never as a negative limit.
	if req.UsageLimit < 0 {
		writeError(w, http.StatusBadRequest, "usage limit must not be negative")
		return
	}

	code := promo.Code{
		Name:         name,
		Discount:     decimal.NewFromFloat(req.Discount),
		UsageLimit:   req.UsageLimit,
		Active:       true,
		AppliesToAll: len(req.ProductIDs) == 0,
		ProductIDs:   req.ProductIDs,
	}
	if err := h.promos.Create(r.Context(), &code); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPromoResponse(code))
}

type updatePromoRequest struct {
	Discount   *float64 `json:"discount"`
	UsageLimit *int     `json:"usage_limit"`
	Active     *bool    `json:"active"`
}

func (h *Handler) updatePromo(w http.ResponseWriter, r *http.Request) {
	promoID, err := strconv.ParseInt(chi.URLParam(r, "promoID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid promo code id")
		return
	}

	var req updatePromoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var upd promo.Update
	if req.Discount != nil {
		if *req.Discount <= 0 {
			writeError(w, http.StatusBadRequest, "discount must be positive")
			return
		}
		d := decimal.NewFromFloat(*req.Discount)
		upd.Discount = &d
	}
	if req.UsageLimit != nil && *req.UsageLimit < 0 {
		writeError(w, http.StatusBadRequest, "usage limit must not be negative")
		return
	}
	upd.UsageLimit = req.UsageLimit
	upd.Active = req.Active

	updated, err := h.promos.Update(r.Context(), promoID, upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPromoResponse(*updated))
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopcraft/storefront/internal/domain/cart"
	"github.com/shopcraft/storefront/internal/domain/checkout"
	"github.com/shopcraft/storefront/internal/domain/order"
	"github.com/shopcraft/storefront/internal/domain/product"
	"github.com/shopcraft/storefront/internal/domain/promo"
	"github.com/shopcraft/storefront/internal/repository"
)

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// decodeJSON reads the request body into v. On malformed input it writes the
// 400 response itself and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}

	return true
}

// writeDomainError maps domain errors onto the HTTP contract: rejected input
// and rejected promo conditions are 400 with the reason string, absence is
// 404, state conflicts are 409, anything unexpected is logged and hidden
// behind a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *checkout.ProductUnavailableError

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidContact),
		errors.Is(err, promo.ErrInvalid),
		errors.Is(err, promo.ErrLimitExceeded),
		errors.Is(err, promo.ErrNotApplicable),
		errors.Is(err, promo.ErrAlreadyExists),
		errors.As(err, &unavailable):
		writeError(w, http.StatusBadRequest, userMessage(err))

	case errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, promo.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, userMessage(err))

	case errors.Is(err, repository.ErrTxConflict),
		errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, userMessage(err))

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// userMessage strips wrapping context so clients see only the terminal
// condition, not the internal call chain.
func userMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

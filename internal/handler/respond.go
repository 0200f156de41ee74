package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/gdvshop/backoffice/internal/domain/box"
	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/customer"
	"github.com/gdvshop/backoffice/internal/domain/delivery"
	"github.com/gdvshop/backoffice/internal/domain/order"
	"github.com/gdvshop/backoffice/internal/domain/quote"
)

// errorResponse is the JSON error envelope. Extra fields carry structured
// detail for batched validation failures and post-commit session failures.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	MissingProducts []string `json:"missingProducts,omitempty"`
	OrderID         string   `json:"orderId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: message})
}

// writeError maps a domain error onto the HTTP taxonomy: not-found
// sentinels to 404, ownership to 403, validation and illegal transitions to
// 400, missing extrapolation basis to 422, everything else to an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mpErr   *order.MissingProductsError
		mqErr   *order.MinQuantityError
		itErr   *order.InvalidTransitionError
		ncErr   *quote.NotConvertibleError
		sessErr *quote.SessionError
	)

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, quote.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, box.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "not found"})

	case errors.Is(err, order.ErrNotOwner), errors.Is(err, quote.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Code: http.StatusForbidden, Message: err.Error()})

	case errors.As(err, &mpErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:            http.StatusBadRequest,
			Message:         mpErr.Error(),
			MissingProducts: mpErr.ProductIDs,
		})

	case errors.As(err, &mqErr), errors.As(err, &itErr), errors.As(err, &ncErr),
		errors.Is(err, order.ErrEmptyLines),
		errors.Is(err, order.ErrNotPayable),
		errors.Is(err, order.ErrSessionMismatch),
		errors.Is(err, quote.ErrAlreadyConverted),
		errors.Is(err, quote.ErrMissingFinalPrice),
		errors.Is(err, quote.ErrNoProductRef),
		errors.Is(err, quote.ErrNoShippingAddress),
		errors.Is(err, quote.ErrAddressNotOwned),
		errors.Is(err, box.ErrNotPayable),
		errors.Is(err, box.ErrSessionMismatch),
		errors.Is(err, delivery.ErrInvalidWeight),
		errors.Is(err, delivery.ErrNoRatesConfigured):
		badRequest(w, err.Error())

	case errors.Is(err, delivery.ErrNoExtrapolationBasis):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
		})

	case errors.As(err, &sessErr):
		// The order committed; only the gateway call failed. Name the
		// order so the client can retry session creation against it.
		zctx.From(r.Context()).Error("Checkout session after conversion", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "order created but checkout session failed, retry checkout",
			OrderID: sessErr.OrderID,
		})

	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal error",
		})
	}
}

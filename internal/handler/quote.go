package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/quote"
)

type convertQuoteRequest struct {
	CustomerID        string  `json:"customerId"`
	ShippingAddressID *string `json:"shippingAddressId"`
	OrderType         string  `json:"orderType"`
	Currency          string  `json:"currency"`
}

func (h *Handler) convertQuote(w http.ResponseWriter, r *http.Request) {
	var req convertQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		badRequest(w, "customerId is required")
		return
	}

	res, err := h.quotes.Convert(r.Context(), quote.ConvertParams{
		QuoteID:           r.PathValue("id"),
		CustomerID:        req.CustomerID,
		ShippingAddressID: req.ShippingAddressID,
		OrderType:         req.OrderType,
		Currency:          req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"orderId":     res.OrderID,
		"checkoutUrl": res.CheckoutURL,
	})
}

type quoteView struct {
	ID         string           `json:"id"`
	CustomerID *string          `json:"customerId,omitempty"`
	Email      string           `json:"email"`
	FinalPrice *decimal.Decimal `json:"finalPrice,omitempty"`
	Status     string           `json:"status"`
	OrderID    *string          `json:"orderId,omitempty"`
	CreatedAt  string           `json:"createdAt"`
}

func (h *Handler) customerQuotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.quotes.ByCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]quoteView, len(items))
	for i, q := range items {
		views[i] = quoteView{
			ID:         q.ID,
			CustomerID: q.CustomerID,
			Email:      q.Email,
			FinalPrice: q.FinalPrice,
			Status:     q.RawStatus,
			OrderID:    q.OrderID,
			CreatedAt:  q.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": views})
}

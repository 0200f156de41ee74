package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/box"
)

func (h *Handler) boxCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	sess, err := h.boxes.EnsureSession(r.Context(), r.PathValue("id"), req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID, "checkoutUrl": sess.URL})
}

type boxView struct {
	ID          string          `json:"id"`
	OrderID     *string         `json:"orderId,omitempty"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	CheckoutURL *string         `json:"checkoutUrl,omitempty"`
}

func viewBox(b *box.CommandBox) boxView {
	return boxView{
		ID:          b.ID,
		OrderID:     b.OrderID,
		Name:        b.Name,
		UnitPrice:   b.UnitPrice,
		Quantity:    b.Quantity,
		Total:       b.Total(),
		Status:      string(b.Status),
		CheckoutURL: b.CheckoutURL,
	}
}

func (h *Handler) customerBoxes(w http.ResponseWriter, r *http.Request) {
	items, err := h.boxes.ByCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]boxView, len(items))
	for i := range items {
		views[i] = viewBox(&items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"boxes": views})
}

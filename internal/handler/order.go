package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/order"
)

type orderLineView struct {
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Total         decimal.Decimal `json:"total"`
	PriceFallback bool            `json:"priceFallback,omitempty"`
}

type orderView struct {
	ID                string          `json:"id"`
	Number            int64           `json:"number"`
	CustomerID        string          `json:"customerId"`
	Lines             []orderLineView `json:"lines"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            string          `json:"status"`
	OrderDate         string          `json:"orderDate"`
	Type              string          `json:"type,omitempty"`
	ShippingAddressID *string         `json:"shippingAddressId,omitempty"`
	PaymentStatus     string          `json:"paymentStatus"`
	CheckoutURL       *string         `json:"checkoutUrl,omitempty"`
}

func viewOrder(o *order.Order) orderView {
	lines := make([]orderLineView, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineView{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			Total:         l.Total(),
			PriceFallback: l.PriceFallback,
		}
	}
	return orderView{
		ID:                o.ID,
		Number:            o.Number,
		CustomerID:        o.CustomerID,
		Lines:             lines,
		TotalAmount:       o.TotalAmount,
		Status:            string(o.Status),
		OrderDate:         o.OrderDate.Format("2006-01-02T15:04:05Z07:00"),
		Type:              o.Type,
		ShippingAddressID: o.ShippingAddressID,
		PaymentStatus:     string(o.PaymentStatus),
		CheckoutURL:       o.CheckoutURL,
	}
}

func viewOrders(orders []order.Order) []orderView {
	out := make([]orderView, len(orders))
	for i := range orders {
		out[i] = viewOrder(&orders[i])
	}
	return out
}

type createOrderRequest struct {
	CustomerID string `json:"customerId"`
	Lines      []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
	ShippingAddressID *string `json:"shippingAddressId"`
	OrderType         string  `json:"orderType"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	lines := make([]order.LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.LineInput{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	o, err := h.orders.Create(r.Context(), order.CreateParams{
		CustomerID:        req.CustomerID,
		Lines:             lines,
		ShippingAddressID: req.ShippingAddressID,
		Type:              req.OrderType,
		IdempotencyKey:    r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		parsed, err := order.ParseLegacyStatus(status)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		items, err := h.orders.ByStatus(r.Context(), parsed)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": viewOrders(items)})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.orders.ListPage(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     viewOrders(result.Orders),
		"total":      result.Total,
		"page":       result.Page,
		"limit":      result.Limit,
		"totalPages": result.TotalPages,
	})
}

type adminActionRequest struct {
	AdminID string `json:"adminId"`
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.orders.Receive)
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.orders.Deliver)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.orders.Cancel)
}

func (h *Handler) adminTransition(
	w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, orderID, adminID string) (*order.Order, error),
) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.AdminID == "" {
		badRequest(w, "adminId is required")
		return
	}

	o, err := op(r.Context(), r.PathValue("id"), req.AdminID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *Handler) resendOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Resend(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

type refundRequest struct {
	CustomerID string `json:"customerId"`
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	o, err := h.orders.RequestRefund(r.Context(), r.PathValue("id"), req.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

type checkoutRequest struct {
	Currency string `json:"currency"`
}

func (h *Handler) orderCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	sess, err := h.checkout.EnsureSession(r.Context(), r.PathValue("id"), req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID, "checkoutUrl": sess.URL})
}

func (h *Handler) customerOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.orders.ByCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": viewOrders(items)})
}

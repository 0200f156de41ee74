// Package handler exposes the domain services over JSON HTTP. Handlers
// decode requests, delegate to services, and map domain errors onto the
// HTTP taxonomy; they hold no business logic.
package handler

import (
	"net/http"

	"github.com/gdvshop/backoffice/internal/domain/box"
	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/delivery"
	"github.com/gdvshop/backoffice/internal/domain/order"
	"github.com/gdvshop/backoffice/internal/domain/quote"
)

// Handler wires domain services to HTTP routes.
type Handler struct {
	products catalog.Repository
	orders   *order.Service
	checkout *order.CheckoutService
	quotes   *quote.ConversionService
	boxes    *box.Service
	delivery *delivery.Engine
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	orders *order.Service,
	checkout *order.CheckoutService,
	quotes *quote.ConversionService,
	boxes *box.Service,
	deliveryEngine *delivery.Engine,
) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
		checkout: checkout,
		quotes:   quotes,
		boxes:    boxes,
		delivery: deliveryEngine,
	}
}

// Routes registers all API routes on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/receive", h.receiveOrder)
	mux.HandleFunc("POST /api/orders/{id}/deliver", h.deliverOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/resend", h.resendOrder)
	mux.HandleFunc("POST /api/orders/{id}/refund-request", h.requestRefund)
	mux.HandleFunc("POST /api/orders/{id}/checkout", h.orderCheckout)

	mux.HandleFunc("GET /api/customers/{id}/orders", h.customerOrders)
	mux.HandleFunc("GET /api/customers/{id}/quotes", h.customerQuotes)
	mux.HandleFunc("GET /api/customers/{id}/boxes", h.customerBoxes)

	mux.HandleFunc("POST /api/quotes/{id}/convert", h.convertQuote)

	mux.HandleFunc("POST /api/delivery/quote", h.deliveryQuote)

	mux.HandleFunc("POST /api/boxes/{id}/checkout", h.boxCheckout)

	mux.HandleFunc("POST /api/payments/events", h.paymentEvent)

	return mux
}

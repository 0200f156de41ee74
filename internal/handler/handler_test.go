package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdvshop/backoffice/internal/domain/box"
	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/customer"
	"github.com/gdvshop/backoffice/internal/domain/delivery"
	"github.com/gdvshop/backoffice/internal/domain/order"
	"github.com/gdvshop/backoffice/internal/domain/pricing"
	"github.com/gdvshop/backoffice/internal/domain/quote"
	"github.com/gdvshop/backoffice/internal/payment"
)

// --- In-memory fakes ---

type fakeProducts struct {
	byID map[string]catalog.Product
}

func (f *fakeProducts) List(_ context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCustomers struct {
	byID map[string]customer.Customer
}

func (f *fakeCustomers) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

type fakeOrders struct {
	byID map[string]*order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order, _ *order.Confirmation) error {
	o.Number = int64(len(f.byID) + 1)
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetByIdempotencyKey(_ context.Context, _, _ string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status order.Status, _ *string) error {
	f.byID[id].Status = status
	return nil
}

func (f *fakeOrders) SetPaymentSession(_ context.Context, id, sessionID, checkoutURL string) error {
	o := f.byID[id]
	o.PaymentSessionID = &sessionID
	o.CheckoutURL = &checkoutURL
	return nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id, _ string) error {
	f.byID[id].PaymentStatus = order.PaymentPaid
	return nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListByStatus(_ context.Context, status order.Status) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.byID {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) List(_ context.Context, _, limit int) ([]order.Order, int64, error) {
	var out []order.Order
	for _, o := range f.byID {
		if len(out) == limit {
			break
		}
		out = append(out, *o)
	}
	return out, int64(len(f.byID)), nil
}

type fakeQuotes struct {
	byID map[string]*quote.Quote
}

func (f *fakeQuotes) GetByID(_ context.Context, id string) (*quote.Quote, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, quote.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuotes) ListByCustomer(_ context.Context, _ string) ([]quote.Quote, error) {
	return nil, nil
}

func (f *fakeQuotes) MarkConverted(_ context.Context, quoteID, orderID string) error {
	q := f.byID[quoteID]
	if q.OrderID != nil {
		return quote.ErrAlreadyConverted
	}
	q.OrderID = &orderID
	q.RawStatus = quote.StatusConverted
	return nil
}

type fakeAddresses struct {
	byCustomer map[string][]customer.Address
}

func (f *fakeAddresses) GetByID(_ context.Context, id string) (*customer.Address, error) {
	for _, addrs := range f.byCustomer {
		for _, a := range addrs {
			if a.ID == id {
				return &a, nil
			}
		}
	}
	return nil, customer.ErrAddressNotFound
}

func (f *fakeAddresses) ListByCustomer(_ context.Context, customerID string) ([]customer.Address, error) {
	return f.byCustomer[customerID], nil
}

type fakeBoxes struct {
	byID map[string]*box.CommandBox
}

func (f *fakeBoxes) GetByID(_ context.Context, id string) (*box.CommandBox, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, box.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBoxes) ListByCustomer(_ context.Context, _ string) ([]box.CommandBox, error) {
	return nil, nil
}

func (f *fakeBoxes) SetPaymentSession(_ context.Context, id, sessionID, checkoutURL string) error {
	b := f.byID[id]
	b.PaymentSessionID = &sessionID
	b.CheckoutURL = &checkoutURL
	return nil
}

func (f *fakeBoxes) UpdateStatus(_ context.Context, id string, status box.Status) error {
	f.byID[id].Status = status
	return nil
}

type fakeRates struct {
	rates []delivery.Rate
}

func (f *fakeRates) ActiveRates(_ context.Context, _ string, _ delivery.Zone) ([]delivery.Rate, error) {
	return f.rates, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *fakeOrders, *fakeQuotes) {
	t.Helper()

	intPtr := func(v int) *int { return &v }
	products := &fakeProducts{byID: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Vanille", Pricing: pricing.ProductPricing{
			Price: decimal.RequireFromString("15.00"),
			StandardTiers: pricing.Table{
				{MinQty: 1, MaxQty: intPtr(9), UnitPrice: decimal.RequireFromString("12.00")},
				{MinQty: 10, MaxQty: nil, UnitPrice: decimal.RequireFromString("10.00")},
			},
		}},
	}}
	customers := &fakeCustomers{byID: map[string]customer.Customer{
		"c1": {ID: "c1", Email: "alice@example.com", FirstName: "Alice"},
	}}
	orders := &fakeOrders{byID: map[string]*order.Order{}}
	finalPrice := decimal.RequireFromString("9.50")
	quotes := &fakeQuotes{byID: map[string]*quote.Quote{
		"q1": {
			ID:              "q1",
			CustomerID:      strPtr("c1"),
			Email:           "alice@example.com",
			ProductSnapshot: map[string]any{"productId": "p1", "quantity": float64(2)},
			FinalPrice:      &finalPrice,
			RawStatus:       "validated",
		},
	}}
	addresses := &fakeAddresses{byCustomer: map[string][]customer.Address{
		"c1": {{ID: "a1", CustomerID: "c1", City: "Paris", IsDefault: true}},
	}}
	boxes := &fakeBoxes{byID: map[string]*box.CommandBox{}}
	rates := &fakeRates{rates: []delivery.Rate{
		{ID: "r1", Carrier: "colissimo", Zone: delivery.ZoneEurope, WeightKg: 1, PriceEUR: decimal.RequireFromString("8.00"), Active: true},
		{ID: "r2", Carrier: "colissimo", Zone: delivery.ZoneEurope, WeightKg: 2, PriceEUR: decimal.RequireFromString("14.00"), Active: true},
	}}

	provider := payment.FakeProvider{BaseURL: "https://pay.test"}
	orderSvc := order.NewService(products, customers, orders, order.Config{})
	checkout := order.NewCheckoutService(orders, &provider, "GDV", "eur")
	conversion := quote.NewConversionService(quotes, customers, addresses, orderSvc, checkout)
	boxSvc := box.NewService(boxes, &provider, "eur")
	engine := delivery.NewEngine(rates)

	h := NewHandler(products, orderSvc, checkout, conversion, boxSvc, engine)
	return h.Routes(), orders, quotes
}

func strPtr(s string) *string { return &s }

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// --- Tests ---

func TestCreateOrder_Created(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/orders",
		`{"customerId":"c1","lines":[{"productId":"p1","quantity":10}]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "created", body["status"])
	assert.Equal(t, "100", decimal.RequireFromString(body["totalAmount"].(string)).String())
}

func TestCreateOrder_MissingProductsNamed(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/orders",
		`{"customerId":"c1","lines":[{"productId":"ghost","quantity":1}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"ghost"}, body["missingProducts"])
}

func TestGetOrder_NotFound(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodGet, "/api/orders/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestRefund_WrongOwnerForbidden(t *testing.T) {
	mux, orders, _ := newTestMux(t)
	orders.byID["o1"] = &order.Order{ID: "o1", CustomerID: "c1", Status: order.StatusDelivered}

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/orders/o1/refund-request",
		`{"customerId":"someone-else"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestResend_NonCancelledBadRequest(t *testing.T) {
	mux, orders, _ := newTestMux(t)
	orders.byID["o1"] = &order.Order{ID: "o1", CustomerID: "c1", Status: order.StatusCreated}

	rec, body := doJSON(t, mux, http.MethodPost, "/api/orders/o1/resend", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "not cancelled")
}

func TestConvertQuote_ReturnsCheckoutURL(t *testing.T) {
	mux, _, quotes := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/quotes/q1/convert",
		`{"customerId":"c1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["checkoutUrl"])
	assert.Equal(t, quote.StatusConverted, quotes.byID["q1"].RawStatus)
}

func TestConvertQuote_SecondCallBadRequest(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/quotes/q1/convert", `{"customerId":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/quotes/q1/convert", `{"customerId":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveryQuote_ExactTier(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/delivery/quote",
		`{"country":"France","weightKg":2,"carrier":"colissimo"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EUROPE", body["destination"])
	assert.Equal(t, false, body["extrapolated"])
}

func TestDeliveryQuote_InvalidWeightBadRequest(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/delivery/quote",
		`{"country":"France","weightKg":0,"carrier":"colissimo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentEvent_MarksOrderPaid(t *testing.T) {
	mux, orders, _ := newTestMux(t)
	sessionID := "cs_1"
	orders.byID["o1"] = &order.Order{
		ID: "o1", CustomerID: "c1", Status: order.StatusCreated,
		PaymentSessionID: &sessionID,
	}

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/payments/events",
		`{"sessionId":"cs_1","orderId":"o1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.PaymentPaid, orders.byID["o1"].PaymentStatus)
}

func TestPaymentEvent_SessionMismatchBadRequest(t *testing.T) {
	mux, orders, _ := newTestMux(t)
	sessionID := "cs_1"
	orders.byID["o1"] = &order.Order{
		ID: "o1", CustomerID: "c1", Status: order.StatusCreated,
		PaymentSessionID: &sessionID,
	}

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/payments/events",
		`{"sessionId":"cs_wrong","orderId":"o1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

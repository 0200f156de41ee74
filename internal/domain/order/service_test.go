package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/customer"
	"github.com/gdvshop/backoffice/internal/domain/pricing"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]catalog.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]catalog.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCustomerRepo struct {
	byID map[string]customer.Customer
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

type mockOrderRepo struct {
	byID       map[string]*Order
	byIdemKey  map[string]*Order
	lastOrder  *Order
	lastConf   *Confirmation
	createErr  error
	nextNumber int64

	// idemLookupMisses makes the first N idempotency lookups miss, to
	// simulate a concurrent writer committing between lookup and insert.
	idemLookupMisses int
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	byID := make(map[string]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID, byIdemKey: map[string]*Order{}, nextNumber: 1}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order, conf *Confirmation) error {
	if m.createErr != nil {
		return m.createErr
	}
	o.Number = m.nextNumber
	m.nextNumber++
	m.byID[o.ID] = o
	if o.IdempotencyKey != "" {
		m.byIdemKey[o.CustomerID+"/"+o.IdempotencyKey] = o
	}
	m.lastOrder = o
	m.lastConf = conf
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByIdempotencyKey(_ context.Context, customerID, key string) (*Order, error) {
	if m.idemLookupMisses > 0 {
		m.idemLookupMisses--
		return nil, ErrNotFound
	}
	o, ok := m.byIdemKey[customerID+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status, adminID *string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	if adminID != nil {
		o.AdminID = adminID
	}
	return nil
}

func (m *mockOrderRepo) SetPaymentSession(_ context.Context, id, sessionID, checkoutURL string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentSessionID = &sessionID
	o.CheckoutURL = &checkoutURL
	o.PaymentStatus = PaymentPending
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, id, _ string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = PaymentPaid
	return nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByStatus(_ context.Context, status Status) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, offset, limit int) ([]Order, int64, error) {
	all := make([]Order, 0, len(m.byID))
	for _, o := range m.byID {
		all = append(all, *o)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// --- Helpers ---

func intPtr(v int) *int { return &v }

func tieredProduct(id string) catalog.Product {
	return catalog.Product{
		ID:   id,
		Name: "Vanille Bourbon " + id,
		Pricing: pricing.ProductPricing{
			Price:    decimal.RequireFromString("15.00"),
			PricePro: decimal.RequireFromString("11.00"),
			StandardTiers: pricing.Table{
				{MinQty: 1, MaxQty: intPtr(9), UnitPrice: decimal.RequireFromString("12.00")},
				{MinQty: 10, MaxQty: nil, UnitPrice: decimal.RequireFromString("10.00")},
			},
			ProTiers: pricing.Table{
				{MinQty: 10, MaxQty: nil, UnitPrice: decimal.RequireFromString("8.00")},
			},
		},
	}
}

func newProductRepo(products ...catalog.Product) *mockProductRepo {
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func newCustomerRepo(customers ...customer.Customer) *mockCustomerRepo {
	byID := make(map[string]customer.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	return &mockCustomerRepo{byID: byID}
}

func standardCustomer() customer.Customer {
	return customer.Customer{ID: "c1", Email: "alice@example.com", FirstName: "Alice"}
}

func newTestService(products *mockProductRepo, customers *mockCustomerRepo, orders *mockOrderRepo) *Service {
	svc := NewService(products, customers, orders, Config{})
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

// --- Create ---

func TestCreate_TieredTotal(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	o, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c1",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 10}},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, o.Status)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("100.00").Equal(o.TotalAmount))
	assert.True(t, SumLines(o.Lines).Equal(o.TotalAmount))
}

func TestCreate_FlatPriceFallbackRecorded(t *testing.T) {
	p := tieredProduct("p1")
	p.Pricing.StandardTiers = pricing.Table{
		{MinQty: 10, MaxQty: nil, UnitPrice: decimal.RequireFromString("10.00")},
	}
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(p), newCustomerRepo(standardCustomer()), repo)

	o, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c1",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 3}},
	})

	require.NoError(t, err)
	assert.True(t, o.Lines[0].PriceFallback)
	assert.True(t, decimal.RequireFromString("15.00").Equal(o.Lines[0].UnitPrice))
}

func TestCreate_ProClassUsesProTiers(t *testing.T) {
	pro := customer.Customer{ID: "c2", Email: "pro@example.com", FirstName: "Bob", Pro: true}
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(pro), repo)

	o, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c2",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 10}},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("8.00").Equal(o.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("80.00").Equal(o.TotalAmount))
}

func TestCreate_EmptyLines(t *testing.T) {
	svc := newTestService(newProductRepo(), newCustomerRepo(standardCustomer()), newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateParams{CustomerID: "c1"})
	require.ErrorIs(t, err, ErrEmptyLines)
}

func TestCreate_CustomerNotFound(t *testing.T) {
	svc := newTestService(newProductRepo(), newCustomerRepo(), newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "ghost",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCreate_MissingProductsAllNamed(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c1",
		Lines: []LineInput{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "ghost-b", Quantity: 1},
			{ProductID: "ghost-a", Quantity: 1},
		},
	})

	var mpErr *MissingProductsError
	require.ErrorAs(t, err, &mpErr)
	assert.Equal(t, []string{"ghost-a", "ghost-b"}, mpErr.ProductIDs)
	assert.Nil(t, repo.lastOrder, "no lines must be persisted on failure")
}

func TestCreate_MinQuantityBatched(t *testing.T) {
	pro := customer.Customer{ID: "c2", Email: "pro@example.com", Pro: true}
	svc := newTestService(newProductRepo(tieredProduct("p1"), tieredProduct("p2")), newCustomerRepo(pro), newMockOrderRepo())

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c2",
		Lines: []LineInput{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
	})

	var mqErr *MinQuantityError
	require.ErrorAs(t, err, &mqErr)
	require.Len(t, mqErr.Violations, 2)
	assert.Equal(t, 10, mqErr.Violations[0].Minimum)
}

func TestCreate_IdempotencyKeyReturnsExisting(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	params := CreateParams{
		CustomerID:     "c1",
		Lines:          []LineInput{{ProductID: "p1", Quantity: 2}},
		IdempotencyKey: "retry-token-1",
	}

	first, err := svc.Create(context.Background(), params)
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byID, 1)
}

func TestCreate_IdempotencyRaceReturnsWinner(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	// The winner committed between this request's lookup and insert: the
	// lookup misses once and the insert hits the unique index.
	winner := &Order{ID: "o-winner", CustomerID: "c1", IdempotencyKey: "retry-token-1"}
	repo.byIdemKey["c1/retry-token-1"] = winner
	repo.idemLookupMisses = 1
	repo.createErr = ErrIdempotencyConflict

	o, err := svc.Create(context.Background(), CreateParams{
		CustomerID:     "c1",
		Lines:          []LineInput{{ProductID: "p1", Quantity: 2}},
		IdempotencyKey: "retry-token-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "o-winner", o.ID)
}

func TestCreate_ConfirmationEnqueued(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c1",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 1}},
	})

	require.NoError(t, err)
	require.NotNil(t, repo.lastConf)
	assert.Equal(t, "alice@example.com", repo.lastConf.Email)
	assert.Equal(t, "Alice", repo.lastConf.FirstName)
	assert.Equal(t, "GDV", repo.lastConf.ReferencePrefix)
}

func TestCreate_RepoError(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErr = errors.New("db write failed")
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "c1",
		Lines:      []LineInput{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

// --- Fixed price (quote conversion path) ---

func TestCreateFixedPrice(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), repo)

	o, err := svc.CreateFixedPrice(context.Background(), FixedPriceParams{
		CustomerID: "c1",
		ProductID:  "p1",
		Quantity:   4,
		UnitPrice:  decimal.RequireFromString("9.50"),
		Type:       "devis",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("38.00").Equal(o.TotalAmount))
	assert.False(t, o.Lines[0].PriceFallback)
}

func TestCreateFixedPrice_NonPositiveTotal(t *testing.T) {
	svc := newTestService(newProductRepo(tieredProduct("p1")), newCustomerRepo(standardCustomer()), newMockOrderRepo())

	_, err := svc.CreateFixedPrice(context.Background(), FixedPriceParams{
		CustomerID: "c1",
		ProductID:  "p1",
		Quantity:   2,
		UnitPrice:  decimal.Zero,
	})
	require.ErrorIs(t, err, ErrNotPayable)
}

// --- Transitions ---

func existingOrder(id string, status Status) *Order {
	return &Order{
		ID:         id,
		Number:     7,
		CustomerID: "c1",
		Lines: []Line{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("12.00")},
		},
		TotalAmount: decimal.RequireFromString("24.00"),
		Status:      status,
		OrderDate:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestReceive_FromCreated(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusCreated))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	o, err := svc.Receive(context.Background(), "o1", "admin-9")
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, o.Status)
	require.NotNil(t, o.AdminID)
	assert.Equal(t, "admin-9", *o.AdminID)
}

func TestReceive_InvalidFromReceived(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusReceived))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	_, err := svc.Receive(context.Background(), "o1", "admin-9")
	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestDeliver_FromReceived(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusReceived))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	o, err := svc.Deliver(context.Background(), "o1", "admin-9")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestCancel_FromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusCreated, StatusReceived, StatusRefundRequested} {
		repo := newMockOrderRepo(existingOrder("o1", from))
		svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

		o, err := svc.Cancel(context.Background(), "o1", "admin-9")
		require.NoError(t, err, "from %s", from)
		assert.Equal(t, StatusCancelled, o.Status)
	}
}

func TestCancel_TerminalRejected(t *testing.T) {
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		repo := newMockOrderRepo(existingOrder("o1", from))
		svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

		_, err := svc.Cancel(context.Background(), "o1", "admin-9")
		var itErr *InvalidTransitionError
		require.ErrorAs(t, err, &itErr, "from %s", from)
	}
}

func TestRequestRefund_OwnerOnly(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusDelivered))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	_, err := svc.RequestRefund(context.Background(), "o1", "someone-else")
	require.ErrorIs(t, err, ErrNotOwner)

	o, err := svc.RequestRefund(context.Background(), "o1", "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusRefundRequested, o.Status)
	assert.True(t, decimal.RequireFromString("24.00").Equal(o.TotalAmount))
}

func TestRequestRefund_CancelledRejected(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusCancelled))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	_, err := svc.RequestRefund(context.Background(), "o1", "c1")
	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

// --- Resend ---

func TestResend_NonCancelledRejected(t *testing.T) {
	repo := newMockOrderRepo(existingOrder("o1", StatusCreated))
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	_, err := svc.Resend(context.Background(), "o1")
	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Contains(t, err.Error(), "not cancelled")
}

func TestResend_CreatesNewOrder(t *testing.T) {
	src := existingOrder("o1", StatusCancelled)
	repo := newMockOrderRepo(src)
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	resent, err := svc.Resend(context.Background(), "o1")
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, resent.ID)
	assert.Equal(t, StatusCreated, resent.Status)
	assert.Equal(t, src.CustomerID, resent.CustomerID)
	assert.True(t, src.TotalAmount.Equal(resent.TotalAmount))
	assert.Equal(t, src.Lines, resent.Lines)

	// The cancelled order is preserved untouched.
	original, err := svc.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, original.Status)
}

func TestResend_NotFound(t *testing.T) {
	svc := newTestService(newProductRepo(), newCustomerRepo(), newMockOrderRepo())

	_, err := svc.Resend(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Settlement ---

func TestMarkPaid_SessionMustMatch(t *testing.T) {
	o := existingOrder("o1", StatusCreated)
	sess := "cs_123"
	o.PaymentSessionID = &sess
	repo := newMockOrderRepo(o)
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	err := svc.MarkPaid(context.Background(), "o1", "cs_other")
	require.ErrorIs(t, err, ErrSessionMismatch)

	require.NoError(t, svc.MarkPaid(context.Background(), "o1", "cs_123"))
	assert.Equal(t, PaymentPaid, repo.byID["o1"].PaymentStatus)
}

// --- Listings ---

func TestListPage_Pagination(t *testing.T) {
	repo := newMockOrderRepo()
	for i := 0; i < 5; i++ {
		o := existingOrder(string(rune('a'+i)), StatusCreated)
		repo.byID[o.ID] = o
	}
	svc := newTestService(newProductRepo(), newCustomerRepo(), repo)

	page, err := svc.ListPage(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Orders, 2)
}

func TestListPage_DefaultsApplied(t *testing.T) {
	svc := newTestService(newProductRepo(), newCustomerRepo(), newMockOrderRepo())

	page, err := svc.ListPage(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 0, page.TotalPages)
}

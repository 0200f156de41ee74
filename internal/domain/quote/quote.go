// Package quote converts validated customer quotes (devis) into payable
// orders. Quote status is free text in the store, so convertibility is
// decided by a token scan rather than an enum comparison.
package quote

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a customer-submitted price quotation. The product reference and
// quantity live inside ProductSnapshot, a JSON document captured when the
// quote was requested; several generations of field names coexist there.
type Quote struct {
	ID         string
	CustomerID *string
	Email      string

	ProductSnapshot map[string]any
	FinalPrice      *decimal.Decimal

	// RawStatus is the free-text status as stored. Use Convertible, not
	// string comparison.
	RawStatus string

	// OrderID is set once the quote has been converted. A quote converts
	// to at most one order.
	OrderID   *string
	CreatedAt time.Time
}

// StatusConverted is the terminal status written on conversion. It contains
// a deny token, so a converted quote can never pass Convertible again.
const StatusConverted = "commande_created"

var (
	allowTokens = []string{"valid", "validé", "validated", "approved", "accept"}
	denyTokens  = []string{"converted", "commande", "paid", "payed"}
)

// Convertible reports whether the free-text status marks the quote as
// approved for conversion. The status must contain an allow token and no
// deny token; deny wins, so "converted_to_commande" is rejected even though
// it carries no allow token either.
func (q *Quote) Convertible() bool {
	status := strings.ToLower(strings.TrimSpace(q.RawStatus))
	for _, tok := range denyTokens {
		if strings.Contains(status, tok) {
			return false
		}
	}
	for _, tok := range allowTokens {
		if strings.Contains(status, tok) {
			return true
		}
	}
	return false
}

// OwnedBy reports whether the quote belongs to the given customer, matched
// by customer id or case-insensitive email.
func (q *Quote) OwnedBy(customerID, email string) bool {
	if q.CustomerID != nil && *q.CustomerID == customerID {
		return true
	}
	return q.Email != "" && strings.EqualFold(q.Email, email)
}

// ProductID extracts the product reference from the snapshot, trying the
// field names used across snapshot generations.
func (q *Quote) ProductID() (string, bool) {
	for _, key := range []string{"productId", "product_id", "id"} {
		if s, ok := snapshotString(q.ProductSnapshot, key); ok {
			return s, true
		}
	}
	if product, ok := q.ProductSnapshot["product"].(map[string]any); ok {
		for _, key := range []string{"id", "productId"} {
			if s, ok := snapshotString(product, key); ok {
				return s, true
			}
		}
	}
	return "", false
}

// QuantityOrDefault derives the requested quantity from the snapshot. Legacy
// field names are tried in priority order inside the nested product object
// first, then at the top level; the first positive numeric value wins and
// the default is 1.
func (q *Quote) QuantityOrDefault() int {
	if product, ok := q.ProductSnapshot["product"].(map[string]any); ok {
		for _, key := range []string{"quantity", "nombre"} {
			if n, ok := snapshotPositiveInt(product, key); ok {
				return n
			}
		}
	}
	for _, key := range []string{"quantity", "nombre", "qty", "count"} {
		if n, ok := snapshotPositiveInt(q.ProductSnapshot, key); ok {
			return n
		}
	}
	return 1
}

func snapshotString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		if s != "" {
			return s, true
		}
	case float64:
		return strconv.FormatInt(int64(s), 10), true
	}
	return "", false
}

func snapshotPositiveInt(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n), true
		}
	case int:
		if n > 0 {
			return n, true
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && parsed > 0 {
			return parsed, true
		}
	}
	return 0, false
}

// Repository defines persistence for quotes.
//
// MarkConverted must set the terminal status and the order back-reference
// only when the quote has no order yet, returning ErrAlreadyConverted
// otherwise. This is the single guard that makes concurrent conversions of
// the same quote safe.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Quote, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Quote, error)
	MarkConverted(ctx context.Context, quoteID, orderID string) error
}

// Package pricing resolves unit prices from quantity tier tables.
//
// Each product carries two independent tier tables, one per customer class.
// A tier maps a quantity range to a fixed unit price; resolution is
// first-match in ascending MinQty order. When no tier matches, callers fall
// back to the product's flat price and the fallback is reported so it can be
// audited, not treated as an error.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CustomerClass selects which tier table and flat price apply.
// The class is an external determination (account-type lookup) passed in by
// callers; this package never computes it.
type CustomerClass string

const (
	ClassStandard CustomerClass = "standard"
	ClassPro      CustomerClass = "pro"
)

// Tier maps a quantity range to a fixed unit price.
// MaxQty nil means the tier is open-ended (quantity >= MinQty).
type Tier struct {
	MinQty    int             `json:"minQty"`
	MaxQty    *int            `json:"maxQty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// contains reports whether qty falls inside the tier's range.
func (t Tier) contains(qty int) bool {
	if qty < t.MinQty {
		return false
	}
	return t.MaxQty == nil || qty <= *t.MaxQty
}

// Table is an ordered list of tiers, sorted ascending by MinQty.
type Table []Tier

// Resolve returns the unit price of the first tier containing qty.
// The scan is first-match, not best-match: given overlapping tiers (which
// Validate rejects, but Resolve must still behave when invoked directly),
// the earliest structurally matching tier wins. The second return value is
// false when no tier matches.
func (t Table) Resolve(qty int) (decimal.Decimal, bool) {
	for _, tier := range t {
		if tier.contains(qty) {
			return tier.UnitPrice, true
		}
	}
	return decimal.Zero, false
}

// Validate checks the structural invariants of a tier table and returns all
// violations as human-readable reasons. An empty result means the table is
// valid. Violations are reported, never panicked or returned as errors:
// callers decide whether to reject catalog writes.
//
// Checked invariants:
//   - the table is not empty
//   - every MinQty is at least 1 and every unit price is positive
//   - MinQty < MaxQty within each bounded tier
//   - consecutive tiers do not overlap and are sorted ascending by MinQty
//   - only the final tier may be open-ended
func (t Table) Validate() []string {
	var reasons []string

	if len(t) == 0 {
		return []string{"tier table is empty"}
	}

	for i, tier := range t {
		if tier.MinQty < 1 {
			reasons = append(reasons, fmt.Sprintf("tier %d: minQty must be at least 1, got %d", i, tier.MinQty))
		}
		if !tier.UnitPrice.IsPositive() {
			reasons = append(reasons, fmt.Sprintf("tier %d: unit price must be positive, got %s", i, tier.UnitPrice))
		}
		if tier.MaxQty != nil && tier.MinQty >= *tier.MaxQty {
			reasons = append(reasons, fmt.Sprintf("tier %d: minQty %d must be below maxQty %d", i, tier.MinQty, *tier.MaxQty))
		}
		if tier.MaxQty == nil && i != len(t)-1 {
			reasons = append(reasons, fmt.Sprintf("tier %d: only the final tier may be open-ended", i))
		}
	}

	for i := 1; i < len(t); i++ {
		prev, curr := t[i-1], t[i]
		if curr.MinQty <= prev.MinQty {
			reasons = append(reasons, fmt.Sprintf("tier %d: minQty %d is not above previous minQty %d", i, curr.MinQty, prev.MinQty))
			continue
		}
		if prev.MaxQty != nil && curr.MinQty <= *prev.MaxQty {
			reasons = append(reasons, fmt.Sprintf("tier %d: range overlaps previous tier ending at %d", i, *prev.MaxQty))
		}
	}

	return reasons
}

// ProductPricing holds everything needed to price one product: flat prices
// per class and the two independent tier tables. Read-only to this package;
// owned by the catalog.
type ProductPricing struct {
	Price         decimal.Decimal
	PricePro      decimal.Decimal
	StandardTiers Table
	ProTiers      Table
}

// Quote is the outcome of resolving a unit price for a quantity.
type Quote struct {
	UnitPrice decimal.Decimal

	// UsedFallback is true when no tier matched and the flat class price
	// was used instead. Recorded for auditability; not an error.
	UsedFallback bool
}

// UnitPrice resolves the unit price for qty under the given customer class.
// The matching tier table is scanned first; on no match the class's flat
// price is returned with UsedFallback set.
func (p ProductPricing) UnitPrice(qty int, class CustomerClass) Quote {
	table, flat := p.StandardTiers, p.Price
	if class == ClassPro {
		table, flat = p.ProTiers, p.PricePro
	}

	if price, ok := table.Resolve(qty); ok {
		return Quote{UnitPrice: price}
	}
	return Quote{UnitPrice: flat, UsedFallback: true}
}

// LineTotal returns unitPrice x qty rounded to 2 decimal places.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

package quote

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for quote conversion.
var (
	ErrNotFound         = errors.New("quote not found")
	ErrNotOwner         = errors.New("quote belongs to a different customer")
	ErrAlreadyConverted = errors.New("quote already converted to an order")
	// ErrMissingFinalPrice is returned when no positive admin-set final
	// price exists. Conversion never invents a price.
	ErrMissingFinalPrice = errors.New("quote has no positive final price")
	ErrNoProductRef      = errors.New("quote snapshot has no resolvable product reference")
	ErrNoShippingAddress = errors.New("no shipping address could be resolved")
	ErrAddressNotOwned   = errors.New("shipping address belongs to a different customer")
)

// NotConvertibleError reports a quote whose free-text status failed the
// convertibility scan.
type NotConvertibleError struct {
	RawStatus string
}

func (e *NotConvertibleError) Error() string {
	return fmt.Sprintf("quote must be validated before conversion (status %q)", e.RawStatus)
}

// SessionError reports a conversion where the order was committed but the
// payment session could not be obtained. The order stays valid; the caller
// retries session creation against OrderID.
type SessionError struct {
	OrderID string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("order %s created but checkout session failed: %v", e.OrderID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

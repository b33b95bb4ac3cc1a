package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/pricing"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindInsufficientStock
	KindBusy
	KindPersistenceFailure
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindBusy:
		return "busy"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Error is the only error type Checkout returns.
type Error struct {
	Kind    Kind
	Message string
	// Set for KindInsufficientStock.
	ProductID int64
	Requested int
	Available int
	Err       error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of a checkout error, or false for any other error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: "invalid checkout request: " + fmt.Sprintf(format, args...)}
}

// classify maps failures from the ledger, pricing, sale store and storage
// backends onto the checkout error kinds.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var shortage *inventory.InsufficientStockError
	switch {
	case errors.As(err, &shortage):
		return &Error{
			Kind:      KindInsufficientStock,
			Message:   shortage.Error(),
			ProductID: shortage.ProductID,
			Requested: shortage.Requested,
			Available: shortage.Available,
			Err:       err,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindCanceled, Message: "checkout canceled before it was saved", Err: err}
	case errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindBusy, Message: "stock is locked by another checkout, please retry", Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindInvalidRequest, Message: "invalid checkout request: unknown product", Err: err}
	case errors.Is(err, inventory.ErrInactiveProduct),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrNegativeDiscount),
		errors.Is(err, domain.ErrUnknownPaymentMethod):
		return &Error{Kind: KindInvalidRequest, Message: "invalid checkout request: " + err.Error(), Err: err}
	}
	return &Error{Kind: KindPersistenceFailure, Message: "checkout could not be saved", Err: err}
}

// Package inventory is the only writer of product stock levels.
//
// Every change happens inside a store.Tx: CheckAndReserve locks the product
// row, verifies availability and writes the decremented quantity. The
// decrement becomes durable when the transaction commits; Release puts the
// units back inside the same transaction when a checkout aborts.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInactiveProduct   = errors.New("product is not active")
	ErrReservationClosed = errors.New("reservation already released")
)

// InsufficientStockError names the product that could not cover a request.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

type reservationState int

const (
	reservationPending reservationState = iota
	reservationCommitted
	reservationReleased
)

// Reservation is a transaction-scoped stock decrement.
type Reservation struct {
	Product  domain.Product
	Quantity int
	Before   int
	After    int
	state    reservationState
}

func (r *Reservation) Committed() bool { return r.state == reservationCommitted }
func (r *Reservation) Released() bool  { return r.state == reservationReleased }

type Ledger struct {
	catalog store.Catalog
}

func NewLedger(catalog store.Catalog) *Ledger {
	return &Ledger{catalog: catalog}
}

func (l *Ledger) CheckAndReserve(ctx context.Context, tx store.Tx, productID int64, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("product %d: %w", productID, ErrInvalidQuantity)
	}

	product, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%s: %w", product.Name, ErrInactiveProduct)
	}
	if product.QuantityInStock < quantity {
		return nil, &InsufficientStockError{
			ProductID: product.ID,
			Name:      product.Name,
			Requested: quantity,
			Available: product.QuantityInStock,
		}
	}

	after := product.QuantityInStock - quantity
	version, err := tx.SetStock(ctx, productID, after, product.Version)
	if err != nil {
		return nil, err
	}

	res := &Reservation{
		Product:  product,
		Quantity: quantity,
		Before:   product.QuantityInStock,
		After:    after,
	}
	res.Product.QuantityInStock = after
	res.Product.Version = version
	return res, nil
}

// Commit marks the reservation final. Call it once the enclosing transaction
// has committed.
func (l *Ledger) Commit(res *Reservation) error {
	if res == nil {
		return nil
	}
	if res.state == reservationReleased {
		return ErrReservationClosed
	}
	res.state = reservationCommitted
	return nil
}

// Release re-credits the reserved units inside tx. Releasing twice is a no-op.
func (l *Ledger) Release(ctx context.Context, tx store.Tx, res *Reservation) error {
	if res == nil || res.state == reservationReleased {
		return nil
	}
	if res.state == reservationCommitted {
		return fmt.Errorf("release product %d: reservation already committed", res.Product.ID)
	}

	product, err := tx.LockProduct(ctx, res.Product.ID)
	if err != nil {
		return err
	}
	if _, err := tx.SetStock(ctx, product.ID, product.QuantityInStock+res.Quantity, product.Version); err != nil {
		return err
	}
	res.state = reservationReleased
	return nil
}

func (l *Ledger) IsLowStock(ctx context.Context, productID int64) (bool, error) {
	product, err := l.catalog.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.IsLowStock(), nil
}

func (l *Ledger) LowStockCount(ctx context.Context) (int64, error) {
	return l.catalog.CountLowStock(ctx)
}

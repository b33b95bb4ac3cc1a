package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

type stockWrite struct {
	qty     int
	version int64
}

// tx buffers stock writes and sales until Commit. Row locks are one-slot
// channels owned by the Store; a tx holds a product's slot from its first
// LockProduct until Commit or Rollback.
type tx struct {
	s       *Store
	held    []int64
	heldSet map[int64]bool
	stock   map[int64]stockWrite
	sales   []*domain.Sale
	done    bool
}

func (t *tx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	if t.done {
		return domain.Product{}, store.ErrTxDone
	}
	if !t.heldSet[id] {
		t.s.mu.RLock()
		_, ok := t.s.products[id]
		t.s.mu.RUnlock()
		if !ok {
			return domain.Product{}, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
		}

		lk := t.s.rowLock(id)
		timer := time.NewTimer(t.s.lockTimeout)
		defer timer.Stop()
		select {
		case lk <- struct{}{}:
		case <-timer.C:
			return domain.Product{}, fmt.Errorf("lock product %d: %w", id, store.ErrBusy)
		case <-ctx.Done():
			return domain.Product{}, ctx.Err()
		}
		t.held = append(t.held, id)
		t.heldSet[id] = true
	}
	return t.view(id), nil
}

// view is the product with this transaction's own stock writes applied.
func (t *tx) view(id int64) domain.Product {
	t.s.mu.RLock()
	p := t.s.products[id]
	t.s.mu.RUnlock()
	if w, ok := t.stock[id]; ok {
		p.QuantityInStock = w.qty
		p.Version = w.version
	}
	return p
}

func (t *tx) SetStock(_ context.Context, id int64, qty int, expectedVersion int64) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if !t.heldSet[id] {
		return 0, fmt.Errorf("%w: product %d is not locked by this transaction", store.ErrInvalid, id)
	}
	if qty < 0 {
		return 0, fmt.Errorf("%w: stock for product %d would be %d", store.ErrInvalid, id, qty)
	}
	current := t.view(id)
	if current.Version != expectedVersion {
		return 0, fmt.Errorf("product %d at version %d, expected %d: %w", id, current.Version, expectedVersion, store.ErrConflict)
	}
	next := expectedVersion + 1
	t.stock[id] = stockWrite{qty: qty, version: next}
	return next, nil
}

func (t *tx) InsertSale(_ context.Context, sale *domain.Sale) error {
	if t.done {
		return store.ErrTxDone
	}
	if sale == nil || len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", store.ErrInvalid)
	}
	t.s.mu.RLock()
	for _, item := range sale.Items {
		if _, ok := t.s.products[item.ProductID]; !ok {
			t.s.mu.RUnlock()
			return fmt.Errorf("%w: sale item references unknown product %d", store.ErrInvalid, item.ProductID)
		}
		if item.QuantitySold <= 0 {
			t.s.mu.RUnlock()
			return fmt.Errorf("%w: sale item quantity must be positive", store.ErrInvalid)
		}
	}
	t.s.mu.RUnlock()

	sale.ID = t.s.nextSaleID.Add(1)
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = t.s.now()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleCompleted
	}
	for i := range sale.Items {
		sale.Items[i].ID = t.s.nextItemID.Add(1)
		sale.Items[i].SaleID = sale.ID
	}
	t.sales = append(t.sales, cloneSale(sale))
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return store.ErrTxDone
	}

	t.s.mu.Lock()
	now := t.s.now()
	for id, w := range t.stock {
		p := t.s.products[id]
		p.QuantityInStock = w.qty
		p.Version = w.version
		p.UpdatedAt = now
		t.s.products[id] = p
	}
	for _, sale := range t.sales {
		t.s.sales = append(t.s.sales, sale)
		t.s.salesByID[sale.ID] = sale
	}
	t.s.mu.Unlock()

	t.finish()
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.stock = nil
	t.sales = nil
	t.s.mu.RLock()
	locks := make([]chan struct{}, 0, len(t.held))
	for _, id := range t.held {
		locks = append(locks, t.s.rowLocks[id])
	}
	t.s.mu.RUnlock()
	for _, lk := range locks {
		<-lk
	}
	t.held = nil
	t.heldSet = map[int64]bool{}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

type pgTx struct {
	tx     *sql.Tx
	locked map[int64]bool
	done   bool
}

// LockProduct takes a row lock with SELECT ... FOR UPDATE. A wait longer
// than lock_timeout surfaces as store.ErrBusy.
func (t *pgTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	if t.done {
		return domain.Product{}, store.ErrTxDone
	}
	p, err := scanProduct(t.tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return domain.Product{}, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return domain.Product{}, err
	}
	t.locked[id] = true
	return *p, nil
}

func (t *pgTx) SetStock(ctx context.Context, id int64, qty int, expectedVersion int64) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if !t.locked[id] {
		return 0, fmt.Errorf("%w: product %d is not locked by this transaction", store.ErrInvalid, id)
	}
	if qty < 0 {
		return 0, fmt.Errorf("%w: stock for product %d would be negative", store.ErrInvalid, id)
	}

	var version int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE products
		SET quantity_in_stock = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING version
	`, id, qty, expectedVersion).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %d changed since it was read", store.ErrConflict, id)
	}
	if err != nil {
		return 0, mapError(err)
	}
	return version, nil
}

func (t *pgTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	if t.done {
		return store.ErrTxDone
	}
	if sale == nil || len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", store.ErrInvalid)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleCompleted
	}

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sales (
			user_id, username, subtotal, tax_rate, tax_amount, discount, grand_total,
			payment_method, amount_paid, change_given, status, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, sale.UserID, sale.Username, sale.Subtotal, sale.TaxRate, sale.TaxAmount, sale.Discount, sale.GrandTotal,
		string(sale.PaymentMethod), sale.AmountPaid, sale.ChangeGiven, string(sale.Status), sale.Notes, sale.CreatedAt,
	).Scan(&sale.ID)
	if err != nil {
		return mapError(err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		if err := t.tx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity_sold, unit_price_at_time, total_price)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, item.SaleID, item.ProductID, item.ProductName, item.QuantitySold, item.UnitPriceAtTime, item.TotalPrice,
		).Scan(&item.ID); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t *pgTx) Commit(_ context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return mapError(t.tx.Commit())
}

func (t *pgTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

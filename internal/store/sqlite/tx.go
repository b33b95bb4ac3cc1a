package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

// sqliteTx owns the writer slot until Commit or Rollback.
type sqliteTx struct {
	s      *Store
	tx     *sqlx.Tx
	locked map[int64]bool
	done   bool
}

func (t *sqliteTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	if t.done {
		return domain.Product{}, store.ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	var row productRow
	if err := t.tx.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id); err != nil {
		return domain.Product{}, mapError(err)
	}
	t.locked[id] = true
	return row.toDomain(), nil
}

func (t *sqliteTx) SetStock(ctx context.Context, id int64, qty int, expectedVersion int64) (int64, error) {
	if t.done {
		return 0, store.ErrTxDone
	}
	if !t.locked[id] {
		return 0, fmt.Errorf("%w: product %d is not locked by this transaction", store.ErrInvalid, id)
	}
	if qty < 0 {
		return 0, fmt.Errorf("%w: stock for product %d would be negative", store.ErrInvalid, id)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity_in_stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, qty, formatTime(t.s.now()), id, expectedVersion)
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: product %d changed since it was read", store.ErrConflict, id)
	}
	return expectedVersion + 1, nil
}

func (t *sqliteTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	if t.done {
		return store.ErrTxDone
	}
	if sale == nil || len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale has no items", store.ErrInvalid)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = t.s.now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleCompleted
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			user_id, username, subtotal_cents, tax_rate_bp, tax_cents, discount_cents, grand_total_cents,
			payment_method, amount_paid_cents, change_cents, status, notes, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sale.UserID, sale.Username, sale.Subtotal.Cents(), rateToBasisPoints(sale.TaxRate), sale.TaxAmount.Cents(),
		sale.Discount.Cents(), sale.GrandTotal.Cents(), string(sale.PaymentMethod), sale.AmountPaid.Cents(),
		sale.ChangeGiven.Cents(), string(sale.Status), sale.Notes, formatTime(sale.CreatedAt))
	if err != nil {
		return mapError(err)
	}
	if sale.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity_sold, unit_price_cents, total_cents)
			VALUES (?, ?, ?, ?, ?, ?)
		`, item.SaleID, item.ProductID, item.ProductName, item.QuantitySold, item.UnitPriceAtTime.Cents(), item.TotalPrice.Cents())
		if err != nil {
			return mapError(err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTx) Commit(_ context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	defer t.release()
	return mapError(t.tx.Commit())
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	defer t.release()
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *sqliteTx) release() {
	t.done = true
	<-t.s.writer
}

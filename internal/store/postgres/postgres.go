package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
	"github.com/Omarrio321/ElectronicsPOS/internal/xid"
)

const defaultLockTimeout = 3 * time.Second

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a product row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func New(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin opens a READ COMMITTED transaction whose lock waits are bounded by
// the store's lock timeout.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapError(err)
	}
	timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
	if _, err := sqlTx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		_ = sqlTx.Rollback()
		return nil, mapError(err)
	}
	return &pgTx{tx: sqlTx, locked: make(map[int64]bool)}, nil
}

const productColumns = `
	id, name, category_id, sku, barcode, cost_price, selling_price,
	quantity_in_stock, low_stock_threshold, is_active, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p        domain.Product
		category sql.NullInt64
		barcode  sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Name, &category, &p.SKU, &barcode, &p.CostPrice, &p.SellingPrice,
		&p.QuantityInStock, &p.LowStockThreshold, &p.IsActive, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	if category.Valid {
		id := category.Int64
		p.CategoryID = &id
	}
	if barcode.Valid {
		code := barcode.String
		p.Barcode = &code
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.SKU = strings.TrimSpace(product.SKU)
	product.Name = strings.TrimSpace(product.Name)
	if product.SKU == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: product sku and name are required", store.ErrInvalid)
	}
	if product.CostPrice.IsNegative() || product.SellingPrice.IsNegative() {
		return nil, fmt.Errorf("%w: product prices must not be negative", store.ErrInvalid)
	}
	if product.QuantityInStock < 0 || product.LowStockThreshold < 0 {
		return nil, fmt.Errorf("%w: product quantities must not be negative", store.ErrInvalid)
	}

	return scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (
			name, category_id, sku, barcode, cost_price, selling_price,
			quantity_in_stock, low_stock_threshold, is_active, version, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,NOW(),NOW())
		RETURNING `+productColumns,
		product.Name, product.CategoryID, product.SKU, product.Barcode, product.CostPrice, product.SellingPrice,
		product.QuantityInStock, product.LowStockThreshold, product.IsActive,
	))
}

func (s *Store) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products
		WHERE is_active = true AND quantity_in_stock <= low_stock_threshold
	`).Scan(&n)
	return n, mapError(err)
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, subtotal, tax_rate, tax_amount, discount, grand_total,
			payment_method, amount_paid, change_given, status, notes, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID, &sale.UserID, &sale.Username, &sale.Subtotal, &sale.TaxRate, &sale.TaxAmount, &sale.Discount, &sale.GrandTotal,
		&sale.PaymentMethod, &sale.AmountPaid, &sale.ChangeGiven, &sale.Status, &sale.Notes, &sale.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity_sold, unit_price_at_time, total_price
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.QuantitySold, &item.UnitPriceAtTime, &item.TotalPrice); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) SalesTotals(ctx context.Context, from, to time.Time) (domain.RangeTotals, error) {
	var totals domain.RangeTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(grand_total), 0),
			COALESCE(SUM(subtotal), 0),
			COALESCE(SUM(tax_amount), 0),
			COALESCE(SUM(discount), 0),
			(
				SELECT COALESCE(SUM(si.quantity_sold), 0)
				FROM sale_items si
				JOIN sales s2 ON s2.id = si.sale_id
				WHERE s2.status = 'completed' AND s2.created_at >= $1 AND s2.created_at < $2
			)
		FROM sales
		WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
	`, from, to).Scan(&totals.Count, &totals.GrandTotal, &totals.Subtotal, &totals.TaxAmount, &totals.Discount, &totals.ItemsSold)
	return totals, mapError(err)
}

func (s *Store) SalesByDay(ctx context.Context, from, to time.Time) ([]domain.DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char((created_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS day, SUM(grand_total)
		FROM sales
		WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.DailyTotal, 0, 32)
	for rows.Next() {
		var row domain.DailyTotal
		if err := rows.Scan(&row.Date, &row.Total); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) SalesByPaymentMethod(ctx context.Context, from, to time.Time) ([]domain.PaymentTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), SUM(grand_total)
		FROM sales
		WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
		GROUP BY payment_method
		ORDER BY SUM(grand_total) DESC, MIN(id) ASC
	`, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.PaymentTotal, 0, 3)
	for rows.Next() {
		var row domain.PaymentTotal
		if err := rows.Scan(&row.Method, &row.Count, &row.Total); err != nil {
			return nil, err
		}
		row.Label = row.Method.Label()
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSales, error) {
	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, p.name, SUM(si.quantity_sold), SUM(si.total_price)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY si.product_id, p.name
		ORDER BY SUM(si.quantity_sold) DESC, MIN(si.id) ASC
		LIMIT $3
	`, from, to, limitArg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, 16)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.Name, &row.QuantitySold, &row.Revenue); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) SalesByUser(ctx context.Context, from, to time.Time) ([]domain.UserSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, (ARRAY_AGG(username ORDER BY id))[1], COUNT(*), SUM(grand_total)
		FROM sales
		WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
		GROUP BY user_id
		ORDER BY SUM(grand_total) DESC, MIN(id) ASC
	`, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.UserSales, 0, 8)
	for rows.Next() {
		var row domain.UserSales
		if err := rows.Scan(&row.UserID, &row.Username, &row.Count, &row.Total); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) CostOfGoodsSold(ctx context.Context, from, to time.Time) (money.Money, error) {
	var cogs money.Money
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.quantity_sold * p.cost_price), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = 'completed' AND s.created_at >= $1 AND s.created_at < $2
	`, from, to).Scan(&cogs)
	return cogs, mapError(err)
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrInvalid)
	}
	if category.Color == "" {
		category.Color = domain.DefaultCategoryColor
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expense_categories (name, description, color, is_system, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		RETURNING id, created_at
	`, category.Name, category.Description, category.Color, category.IsSystem).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	category.CreatedAt = category.CreatedAt.UTC()
	return &category, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	expense.Title = strings.TrimSpace(expense.Title)
	if expense.Title == "" || expense.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: expense needs a title and a non-negative amount", store.ErrInvalid)
	}
	if expense.Status == "" {
		expense.Status = domain.ExpensePending
	}
	if expense.Type == "" {
		expense.Type = domain.ExpenseIndividual
	}
	expense.Date = dayOf(expense.Date)

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (category_id, user_id, title, amount, date, expense_type, status, reference, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		RETURNING id, created_at
	`, expense.CategoryID, expense.UserID, expense.Title, expense.Amount, expense.Date.Format(domain.DateLayout),
		string(expense.Type), string(expense.Status), expense.Reference, expense.Notes,
	).Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: expense category %d", store.ErrNotFound, expense.CategoryID)
		}
		return nil, mapError(err)
	}
	expense.CreatedAt = expense.CreatedAt.UTC()
	return &expense, nil
}

func (s *Store) ExpenseTotals(ctx context.Context, from, to time.Time) (domain.ExpenseTotals, error) {
	var totals domain.ExpenseTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0)
		FROM expenses
		WHERE date >= $1::date AND date < $2::date
	`, dayOf(from).Format(domain.DateLayout), dayOf(to).Format(domain.DateLayout)).Scan(&totals.Paid, &totals.Pending)
	return totals, mapError(err)
}

func (s *Store) ExpensesByCategory(ctx context.Context, from, to time.Time, status domain.ExpenseStatus) ([]domain.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.color, SUM(e.amount)
		FROM expenses e
		JOIN expense_categories c ON c.id = e.category_id
		WHERE e.status = $3 AND e.date >= $1::date AND e.date < $2::date
		GROUP BY c.id, c.name, c.color
		ORDER BY SUM(e.amount) DESC, MIN(e.id) ASC
	`, dayOf(from).Format(domain.DateLayout), dayOf(to).Format(domain.DateLayout), string(status))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.CategoryTotal, 0, 8)
	for rows.Next() {
		var row domain.CategoryTotal
		if err := rows.Scan(&row.CategoryID, &row.Name, &row.Color, &row.Total); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, event domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = xid.New("audit")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	if event.Detail == nil {
		detail = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_username, actor_role, action, target_type, target_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9)
	`, event.ID, event.ActorID, event.ActorUsername, event.ActorRole, event.Action, event.TargetType, event.TargetID, string(detail), event.CreatedAt)
	return mapError(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditEvent, error) {
	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_username, actor_role, action, target_type, target_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, seq DESC
		LIMIT $3
	`, from, to, limitArg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.AuditEvent, 0, 64)
	for rows.Next() {
		var (
			event  domain.AuditEvent
			detail []byte
		)
		if err := rows.Scan(&event.ID, &event.ActorID, &event.ActorUsername, &event.ActorRole, &event.Action, &event.TargetType, &event.TargetID, &detail, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail %s: %w", event.ID, err)
			}
		}
		event.CreatedAt = event.CreatedAt.UTC()
		result = append(result, event)
	}
	return result, rows.Err()
}

// mapError translates driver failures into store sentinels while keeping
// the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, sql.ErrTxDone) {
		return store.ErrTxDone
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01":
			return fmt.Errorf("%w: %w", store.ErrBusy, err)
		case "40001":
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case "23505", "23514", "23503", "22P02":
			return fmt.Errorf("%w: %w", store.ErrInvalid, err)
		case "57014":
			return fmt.Errorf("%w: %w", context.Canceled, err)
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

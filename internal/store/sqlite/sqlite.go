package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
	"github.com/Omarrio321/ElectronicsPOS/internal/xid"
)

// timeLayout is fixed width so TEXT comparison orders instants.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const defaultLockTimeout = 3 * time.Second

// Store keeps all data in one SQLite file behind a single connection.
// Writers are serialized by a one-slot semaphore acquired in Begin.
type Store struct {
	db          *sqlx.DB
	writer      chan struct{}
	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*Store)

func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to path, applies pragmas and runs migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{
		db:          db,
		writer:      make(chan struct{}, 1),
		lockTimeout: defaultLockTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin waits up to the lock timeout for the writer slot.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.writer <- struct{}{}:
	case <-timer.C:
		return nil, fmt.Errorf("%w: writer slot not acquired within %s", store.ErrBusy, s.lockTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		<-s.writer
		return nil, mapError(err)
	}
	return &sqliteTx{s: s, tx: tx, locked: make(map[int64]bool)}, nil
}

type productRow struct {
	ID                int64          `db:"id"`
	Name              string         `db:"name"`
	CategoryID        sql.NullInt64  `db:"category_id"`
	SKU               string         `db:"sku"`
	Barcode           sql.NullString `db:"barcode"`
	CostCents         int64          `db:"cost_cents"`
	PriceCents        int64          `db:"price_cents"`
	QuantityInStock   int            `db:"quantity_in_stock"`
	LowStockThreshold int            `db:"low_stock_threshold"`
	IsActive          bool           `db:"is_active"`
	Version           int64          `db:"version"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

const productColumns = `id, name, category_id, sku, barcode, cost_cents, price_cents,
	quantity_in_stock, low_stock_threshold, is_active, version, created_at, updated_at`

func (r productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:                r.ID,
		Name:              r.Name,
		SKU:               r.SKU,
		CostPrice:         money.FromCents(r.CostCents),
		SellingPrice:      money.FromCents(r.PriceCents),
		QuantityInStock:   r.QuantityInStock,
		LowStockThreshold: r.LowStockThreshold,
		IsActive:          r.IsActive,
		Version:           r.Version,
		CreatedAt:         parseTime(r.CreatedAt),
		UpdatedAt:         parseTime(r.UpdatedAt),
	}
	if r.CategoryID.Valid {
		id := r.CategoryID.Int64
		p.CategoryID = &id
	}
	if r.Barcode.Valid {
		code := r.Barcode.String
		p.Barcode = &code
	}
	return p
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	p := row.toDomain()
	return &p, nil
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

	now := formatTime(s.now())
	row := productRow{
		Name:              product.Name,
		SKU:               product.SKU,
		CostCents:         product.CostPrice.Cents(),
		PriceCents:        product.SellingPrice.Cents(),
		QuantityInStock:   product.QuantityInStock,
		LowStockThreshold: product.LowStockThreshold,
		IsActive:          product.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if product.CategoryID != nil {
		row.CategoryID = sql.NullInt64{Int64: *product.CategoryID, Valid: true}
	}
	if product.Barcode != nil {
		row.Barcode = sql.NullString{String: *product.Barcode, Valid: true}
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (
			name, category_id, sku, barcode, cost_cents, price_cents,
			quantity_in_stock, low_stock_threshold, is_active, version, created_at, updated_at
		)
		VALUES (
			:name, :category_id, :sku, :barcode, :cost_cents, :price_cents,
			:quantity_in_stock, :low_stock_threshold, :is_active, 0, :created_at, :updated_at
		)
	`, row)
	if err != nil {
		return nil, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM products
		WHERE is_active = 1 AND quantity_in_stock <= low_stock_threshold
	`)
	return n, mapError(err)
}

type saleRow struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	Username        string `db:"username"`
	SubtotalCents   int64  `db:"subtotal_cents"`
	TaxRateBP       int64  `db:"tax_rate_bp"`
	TaxCents        int64  `db:"tax_cents"`
	DiscountCents   int64  `db:"discount_cents"`
	GrandTotalCents int64  `db:"grand_total_cents"`
	PaymentMethod   string `db:"payment_method"`
	AmountPaidCents int64  `db:"amount_paid_cents"`
	ChangeCents     int64  `db:"change_cents"`
	Status          string `db:"status"`
	Notes           string `db:"notes"`
	CreatedAt       string `db:"created_at"`
}

type saleItemRow struct {
	ID             int64  `db:"id"`
	SaleID         int64  `db:"sale_id"`
	ProductID      int64  `db:"product_id"`
	ProductName    string `db:"product_name"`
	QuantitySold   int    `db:"quantity_sold"`
	UnitPriceCents int64  `db:"unit_price_cents"`
	TotalCents     int64  `db:"total_cents"`
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sales WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	var items []saleItemRow
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM sale_items WHERE sale_id = ? ORDER BY id`, id); err != nil {
		return nil, mapError(err)
	}

	sale := &domain.Sale{
		ID:            row.ID,
		UserID:        row.UserID,
		Username:      row.Username,
		Subtotal:      money.FromCents(row.SubtotalCents),
		TaxRate:       rateFromBasisPoints(row.TaxRateBP),
		TaxAmount:     money.FromCents(row.TaxCents),
		Discount:      money.FromCents(row.DiscountCents),
		GrandTotal:    money.FromCents(row.GrandTotalCents),
		PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
		AmountPaid:    money.FromCents(row.AmountPaidCents),
		ChangeGiven:   money.FromCents(row.ChangeCents),
		Status:        domain.SaleStatus(row.Status),
		Notes:         row.Notes,
		CreatedAt:     parseTime(row.CreatedAt),
		Items:         make([]domain.SaleItem, 0, len(items)),
	}
	for _, item := range items {
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:              item.ID,
			SaleID:          item.SaleID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			QuantitySold:    item.QuantitySold,
			UnitPriceAtTime: money.FromCents(item.UnitPriceCents),
			TotalPrice:      money.FromCents(item.TotalCents),
		})
	}
	return sale, nil
}

const completedIn = `status = 'completed' AND created_at >= ? AND created_at < ?`

func (s *Store) SalesTotals(ctx context.Context, from, to time.Time) (domain.RangeTotals, error) {
	var row struct {
		Count      int64 `db:"n"`
		GrandTotal int64 `db:"grand_total"`
		Subtotal   int64 `db:"subtotal"`
		Tax        int64 `db:"tax"`
		Discount   int64 `db:"discount"`
		ItemsSold  int64 `db:"items_sold"`
	}
	f, t := formatTime(from), formatTime(to)
	err := s.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS n,
			COALESCE(SUM(grand_total_cents), 0) AS grand_total,
			COALESCE(SUM(subtotal_cents), 0) AS subtotal,
			COALESCE(SUM(tax_cents), 0) AS tax,
			COALESCE(SUM(discount_cents), 0) AS discount,
			(
				SELECT COALESCE(SUM(si.quantity_sold), 0)
				FROM sale_items si
				JOIN sales s2 ON s2.id = si.sale_id
				WHERE s2.status = 'completed' AND s2.created_at >= ? AND s2.created_at < ?
			) AS items_sold
		FROM sales
		WHERE `+completedIn, f, t, f, t)
	if err != nil {
		return domain.RangeTotals{}, mapError(err)
	}
	return domain.RangeTotals{
		Count:      row.Count,
		GrandTotal: money.FromCents(row.GrandTotal),
		Subtotal:   money.FromCents(row.Subtotal),
		TaxAmount:  money.FromCents(row.Tax),
		Discount:   money.FromCents(row.Discount),
		ItemsSold:  row.ItemsSold,
	}, nil
}

func (s *Store) SalesByDay(ctx context.Context, from, to time.Time) ([]domain.DailyTotal, error) {
	var rows []struct {
		Day   string `db:"day"`
		Total int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT substr(created_at, 1, 10) AS day, SUM(grand_total_cents) AS total
		FROM sales
		WHERE `+completedIn+`
		GROUP BY day
		ORDER BY day
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.DailyTotal, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.DailyTotal{Date: row.Day, Total: money.FromCents(row.Total)})
	}
	return result, nil
}

func (s *Store) SalesByPaymentMethod(ctx context.Context, from, to time.Time) ([]domain.PaymentTotal, error) {
	var rows []struct {
		Method string `db:"payment_method"`
		Count  int64  `db:"n"`
		Total  int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT payment_method, COUNT(*) AS n, SUM(grand_total_cents) AS total
		FROM sales
		WHERE `+completedIn+`
		GROUP BY payment_method
		ORDER BY total DESC, MIN(id) ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.PaymentTotal, 0, len(rows))
	for _, row := range rows {
		method := domain.PaymentMethod(row.Method)
		result = append(result, domain.PaymentTotal{Method: method, Label: method.Label(), Count: row.Count, Total: money.FromCents(row.Total)})
	}
	return result, nil
}

func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []struct {
		ProductID int64  `db:"product_id"`
		Name      string `db:"name"`
		Quantity  int64  `db:"quantity"`
		Revenue   int64  `db:"revenue"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT si.product_id, p.name, SUM(si.quantity_sold) AS quantity, SUM(si.total_cents) AS revenue
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = 'completed' AND s.created_at >= ? AND s.created_at < ?
		GROUP BY si.product_id, p.name
		ORDER BY quantity DESC, MIN(si.id) ASC
		LIMIT ?
	`, formatTime(from), formatTime(to), limit)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.ProductSales, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.ProductSales{ProductID: row.ProductID, Name: row.Name, QuantitySold: row.Quantity, Revenue: money.FromCents(row.Revenue)})
	}
	return result, nil
}

func (s *Store) SalesByUser(ctx context.Context, from, to time.Time) ([]domain.UserSales, error) {
	var rows []struct {
		UserID   string `db:"user_id"`
		Username string `db:"username"`
		FirstID  int64  `db:"first_id"`
		Count    int64  `db:"n"`
		Total    int64  `db:"total"`
	}
	// username is a bare column, taken from the row that supplies MIN(id).
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, username, MIN(id) AS first_id, COUNT(*) AS n, SUM(grand_total_cents) AS total
		FROM sales
		WHERE `+completedIn+`
		GROUP BY user_id
		ORDER BY total DESC, first_id ASC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.UserSales, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.UserSales{UserID: row.UserID, Username: row.Username, Count: row.Count, Total: money.FromCents(row.Total)})
	}
	return result, nil
}

func (s *Store) CostOfGoodsSold(ctx context.Context, from, to time.Time) (money.Money, error) {
	var cents int64
	err := s.db.GetContext(ctx, &cents, `
		SELECT COALESCE(SUM(si.quantity_sold * p.cost_cents), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = 'completed' AND s.created_at >= ? AND s.created_at < ?
	`, formatTime(from), formatTime(to))
	if err != nil {
		return money.Zero(), mapError(err)
	}
	return money.FromCents(cents), nil
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrInvalid)
	}
	if category.Color == "" {
		category.Color = domain.DefaultCategoryColor
	}
	category.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (name, description, color, is_system, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, category.Name, category.Description, category.Color, category.IsSystem, formatTime(category.CreatedAt))
	if err != nil {
		return nil, mapError(err)
	}
	if category.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
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
	if !expense.Status.Valid() || !expense.Type.Valid() {
		return nil, fmt.Errorf("%w: expense status %q type %q", store.ErrInvalid, expense.Status, expense.Type)
	}
	expense.Date = dayOf(expense.Date)
	expense.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (category_id, user_id, title, amount_cents, date, expense_type, status, reference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, expense.CategoryID, expense.UserID, expense.Title, expense.Amount.Cents(), expense.Date.Format(domain.DateLayout),
		string(expense.Type), string(expense.Status), expense.Reference, expense.Notes, formatTime(expense.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: expense category %d", store.ErrNotFound, expense.CategoryID)
		}
		return nil, mapError(err)
	}
	if expense.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) ExpenseTotals(ctx context.Context, from, to time.Time) (domain.ExpenseTotals, error) {
	var row struct {
		Paid    int64 `db:"paid"`
		Pending int64 `db:"pending"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount_cents END), 0) AS paid,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN amount_cents END), 0) AS pending
		FROM expenses
		WHERE date >= ? AND date < ?
	`, dayOf(from).Format(domain.DateLayout), dayOf(to).Format(domain.DateLayout))
	if err != nil {
		return domain.ExpenseTotals{}, mapError(err)
	}
	return domain.ExpenseTotals{Paid: money.FromCents(row.Paid), Pending: money.FromCents(row.Pending)}, nil
}

func (s *Store) ExpensesByCategory(ctx context.Context, from, to time.Time, status domain.ExpenseStatus) ([]domain.CategoryTotal, error) {
	var rows []struct {
		CategoryID int64  `db:"id"`
		Name       string `db:"name"`
		Color      string `db:"color"`
		Total      int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.name, c.color, SUM(e.amount_cents) AS total
		FROM expenses e
		JOIN expense_categories c ON c.id = e.category_id
		WHERE e.status = ? AND e.date >= ? AND e.date < ?
		GROUP BY c.id, c.name, c.color
		ORDER BY total DESC, MIN(e.id) ASC
	`, string(status), dayOf(from).Format(domain.DateLayout), dayOf(to).Format(domain.DateLayout))
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.CategoryTotal{CategoryID: row.CategoryID, Name: row.Name, Color: row.Color, Total: money.FromCents(row.Total)})
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, event domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = xid.New("audit")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	detail := []byte("{}")
	if event.Detail != nil {
		var err error
		if detail, err = json.Marshal(event.Detail); err != nil {
			return fmt.Errorf("encode audit detail: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_username, actor_role, action, target_type, target_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.ActorID, event.ActorUsername, event.ActorRole, event.Action, event.TargetType, event.TargetID, string(detail), formatTime(event.CreatedAt))
	return mapError(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []struct {
		ID            string `db:"id"`
		ActorID       string `db:"actor_id"`
		ActorUsername string `db:"actor_username"`
		ActorRole     string `db:"actor_role"`
		Action        string `db:"action"`
		TargetType    string `db:"target_type"`
		TargetID      string `db:"target_id"`
		Detail        string `db:"detail"`
		CreatedAt     string `db:"created_at"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_id, actor_username, actor_role, action, target_type, target_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, formatTime(from), formatTime(to), limit)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := domain.AuditEvent{
			ID:            row.ID,
			ActorID:       row.ActorID,
			ActorUsername: row.ActorUsername,
			ActorRole:     row.ActorRole,
			Action:        row.Action,
			TargetType:    row.TargetType,
			TargetID:      row.TargetID,
			CreatedAt:     parseTime(row.CreatedAt),
		}
		if err := json.Unmarshal([]byte(row.Detail), &event.Detail); err != nil {
			return nil, fmt.Errorf("decode audit detail %s: %w", row.ID, err)
		}
		result = append(result, event)
	}
	return result, nil
}

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

	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", store.ErrBusy, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %w", store.ErrInvalid, err)
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "FOREIGN KEY")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rateToBasisPoints(r money.Rate) int64 {
	return r.Decimal().Shift(money.RateScale).IntPart()
}

func rateFromBasisPoints(n int64) money.Rate {
	return money.RateFromDecimal(decimal.New(n, -money.RateScale))
}

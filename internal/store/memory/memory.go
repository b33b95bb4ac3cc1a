package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
	"github.com/Omarrio321/ElectronicsPOS/internal/xid"
)

const defaultLockTimeout = 3 * time.Second

type Store struct {
	mu          sync.RWMutex
	products    map[int64]domain.Product
	rowLocks    map[int64]chan struct{}
	sales       []*domain.Sale
	salesByID   map[int64]*domain.Sale
	categories  map[int64]domain.ExpenseCategory
	expenses    []domain.Expense
	auditLogs   []domain.AuditEvent
	lockTimeout time.Duration
	now         func() time.Time

	nextProductID  int64
	nextCategoryID int64
	nextExpenseID  int64
	nextSaleID     atomic.Int64
	nextItemID     atomic.Int64
}

type Option func(*Store)

// WithLockTimeout bounds how long LockProduct waits for a row held by
// another transaction.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithClock replaces time.Now for sale and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		products:    make(map[int64]domain.Product),
		rowLocks:    make(map[int64]chan struct{}),
		salesByID:   make(map[int64]*domain.Sale),
		categories:  make(map[int64]domain.ExpenseCategory),
		expenses:    make([]domain.Expense, 0, 32),
		auditLogs:   make([]domain.AuditEvent, 0, 128),
		lockTimeout: defaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeeded returns a store with a small electronics catalog and the system
// expense categories, for dev mode and tests.
func NewSeeded(opts ...Option) *Store {
	s := New(opts...)
	ctx := context.Background()
	for _, p := range seedProducts() {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			panic(fmt.Sprintf("memory seed product %s: %v", p.SKU, err))
		}
	}
	for _, c := range seedCategories() {
		if _, err := s.CreateExpenseCategory(ctx, c); err != nil {
			panic(fmt.Sprintf("memory seed category %s: %v", c.Name, err))
		}
	}
	return s
}

func seedProducts() []domain.Product {
	entries := []struct {
		sku, name, cost, price string
		qty                    int
	}{
		{"EL-CBL-USBC-1M", "USB-C Cable 1m", "2.10", "7.99", 120},
		{"EL-CHG-65W", "65W GaN Charger", "18.50", "39.99", 40},
		{"EL-EAR-BT5", "Bluetooth Earbuds", "14.00", "34.50", 35},
		{"EL-PWR-10K", "Power Bank 10000mAh", "11.25", "24.99", 50},
		{"EL-MSE-WL", "Wireless Mouse", "6.40", "15.00", 60},
		{"EL-KBD-MECH", "Mechanical Keyboard", "32.00", "69.00", 15},
		{"EL-SSD-1TB", "Portable SSD 1TB", "54.00", "99.00", 12},
		{"EL-HDMI-2M", "HDMI 2.1 Cable 2m", "3.30", "11.99", 80},
	}
	out := make([]domain.Product, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Product{
			SKU:               e.sku,
			Name:              e.name,
			CostPrice:         money.MustParse(e.cost),
			SellingPrice:      money.MustParse(e.price),
			QuantityInStock:   e.qty,
			LowStockThreshold: domain.DefaultLowStockThreshold,
			IsActive:          true,
		})
	}
	return out
}

func seedCategories() []domain.ExpenseCategory {
	return []domain.ExpenseCategory{
		{Name: "Rent", Color: "#0d6efd", IsSystem: true},
		{Name: "Utilities", Color: "#20c997", IsSystem: true},
		{Name: "Salaries", Color: "#6f42c1", IsSystem: true},
		{Name: "Supplies", Color: domain.DefaultCategoryColor, IsSystem: true},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if strings.EqualFold(existing.SKU, product.SKU) {
			return nil, fmt.Errorf("%w: sku %s already exists", store.ErrInvalid, product.SKU)
		}
		if product.Barcode != nil && existing.Barcode != nil && *existing.Barcode == *product.Barcode {
			return nil, fmt.Errorf("%w: barcode %s already exists", store.ErrInvalid, *product.Barcode)
		}
	}

	s.nextProductID++
	now := s.now()
	product.ID = s.nextProductID
	product.Version = 0
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) CountLowStock(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.products {
		if p.IsActive && p.IsLowStock() {
			n++
		}
	}
	return n, nil
}

func (s *Store) Begin(_ context.Context) (store.Tx, error) {
	return &tx{
		s:       s,
		heldSet: make(map[int64]bool),
		stock:   make(map[int64]stockWrite),
	}, nil
}

func (s *Store) rowLock(id int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk, ok := s.rowLocks[id]
	if !ok {
		lk = make(chan struct{}, 1)
		s.rowLocks[id] = lk
	}
	return lk
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

// completedIn calls fn for every completed sale created in [from, to), in
// insertion order. Callers hold s.mu.
func (s *Store) completedIn(from, to time.Time, fn func(*domain.Sale)) {
	for _, sale := range s.sales {
		if sale.Status != domain.SaleCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		fn(sale)
	}
}

func (s *Store) SalesTotals(_ context.Context, from, to time.Time) (domain.RangeTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.RangeTotals
	s.completedIn(from, to, func(sale *domain.Sale) {
		totals.Count++
		totals.GrandTotal = totals.GrandTotal.Add(sale.GrandTotal)
		totals.Subtotal = totals.Subtotal.Add(sale.Subtotal)
		totals.TaxAmount = totals.TaxAmount.Add(sale.TaxAmount)
		totals.Discount = totals.Discount.Add(sale.Discount)
		totals.ItemsSold += int64(sale.ItemCount())
	})
	return totals, nil
}

func (s *Store) SalesByDay(_ context.Context, from, to time.Time) ([]domain.DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]money.Money{}
	s.completedIn(from, to, func(sale *domain.Sale) {
		day := sale.CreatedAt.UTC().Format(domain.DateLayout)
		byDay[day] = byDay[day].Add(sale.GrandTotal)
	})

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	slices.Sort(days)
	result := make([]domain.DailyTotal, 0, len(days))
	for _, day := range days {
		result = append(result, domain.DailyTotal{Date: day, Total: byDay[day]})
	}
	return result, nil
}

func (s *Store) SalesByPaymentMethod(_ context.Context, from, to time.Time) ([]domain.PaymentTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PaymentTotal, 0, 3)
	index := map[domain.PaymentMethod]int{}
	s.completedIn(from, to, func(sale *domain.Sale) {
		i, ok := index[sale.PaymentMethod]
		if !ok {
			i = len(result)
			index[sale.PaymentMethod] = i
			result = append(result, domain.PaymentTotal{Method: sale.PaymentMethod, Label: sale.PaymentMethod.Label()})
		}
		result[i].Count++
		result[i].Total = result[i].Total.Add(sale.GrandTotal)
	})

	slices.SortStableFunc(result, func(a, b domain.PaymentTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return result, nil
}

func (s *Store) TopProducts(_ context.Context, from, to time.Time, limit int) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductSales, 0, 16)
	index := map[int64]int{}
	s.completedIn(from, to, func(sale *domain.Sale) {
		for _, item := range sale.Items {
			i, ok := index[item.ProductID]
			if !ok {
				name := item.ProductName
				if p, found := s.products[item.ProductID]; found {
					name = p.Name
				}
				i = len(result)
				index[item.ProductID] = i
				result = append(result, domain.ProductSales{ProductID: item.ProductID, Name: name})
			}
			result[i].QuantitySold += int64(item.QuantitySold)
			result[i].Revenue = result[i].Revenue.Add(item.TotalPrice)
		}
	})

	slices.SortStableFunc(result, func(a, b domain.ProductSales) int {
		switch {
		case a.QuantitySold > b.QuantitySold:
			return -1
		case a.QuantitySold < b.QuantitySold:
			return 1
		}
		return 0
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SalesByUser(_ context.Context, from, to time.Time) ([]domain.UserSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserSales, 0, 8)
	index := map[string]int{}
	s.completedIn(from, to, func(sale *domain.Sale) {
		i, ok := index[sale.UserID]
		if !ok {
			i = len(result)
			index[sale.UserID] = i
			result = append(result, domain.UserSales{UserID: sale.UserID, Username: sale.Username})
		}
		result[i].Count++
		result[i].Total = result[i].Total.Add(sale.GrandTotal)
	})

	slices.SortStableFunc(result, func(a, b domain.UserSales) int {
		return b.Total.Cmp(a.Total)
	})
	return result, nil
}

func (s *Store) CostOfGoodsSold(_ context.Context, from, to time.Time) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cogs := money.Zero()
	s.completedIn(from, to, func(sale *domain.Sale) {
		for _, item := range sale.Items {
			p, ok := s.products[item.ProductID]
			if !ok {
				continue
			}
			cogs = cogs.Add(p.CostPrice.MulQty(int64(item.QuantitySold)))
		}
	})
	return cogs, nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrInvalid)
	}
	if category.Color == "" {
		category.Color = domain.DefaultCategoryColor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrInvalid, category.Name)
		}
	}
	s.nextCategoryID++
	category.ID = s.nextCategoryID
	category.CreatedAt = s.now()
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[expense.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: expense category %d", store.ErrNotFound, expense.CategoryID)
	}
	s.nextExpenseID++
	expense.ID = s.nextExpenseID
	expense.Date = dayOf(expense.Date)
	expense.CreatedAt = s.now()
	s.expenses = append(s.expenses, expense)
	return &expense, nil
}

func (s *Store) ExpenseTotals(_ context.Context, from, to time.Time) (domain.ExpenseTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.ExpenseTotals
	for _, e := range s.expenses {
		if !inDays(e.Date, from, to) {
			continue
		}
		switch e.Status {
		case domain.ExpensePaid:
			totals.Paid = totals.Paid.Add(e.Amount)
		case domain.ExpensePending:
			totals.Pending = totals.Pending.Add(e.Amount)
		}
	}
	return totals, nil
}

func (s *Store) ExpensesByCategory(_ context.Context, from, to time.Time, status domain.ExpenseStatus) ([]domain.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CategoryTotal, 0, len(s.categories))
	index := map[int64]int{}
	for _, e := range s.expenses {
		if e.Status != status || !inDays(e.Date, from, to) {
			continue
		}
		i, ok := index[e.CategoryID]
		if !ok {
			c := s.categories[e.CategoryID]
			i = len(result)
			index[e.CategoryID] = i
			result = append(result, domain.CategoryTotal{CategoryID: c.ID, Name: c.Name, Color: c.Color})
		}
		result[i].Total = result[i].Total.Add(e.Amount)
	}

	slices.SortStableFunc(result, func(a, b domain.CategoryTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = xid.New("audit")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	event.Detail = maps.Clone(event.Detail)
	s.auditLogs = append(s.auditLogs, event)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditEvent, 0, 64)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortStableFunc(result, func(a, b domain.AuditEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func inDays(day, from, to time.Time) bool {
	d := dayOf(day)
	return !d.Before(dayOf(from)) && d.Before(dayOf(to))
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Items = slices.Clone(src.Items)
	return &dst
}

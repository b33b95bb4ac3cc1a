package store

import (
	"context"
	"errors"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrBusy means a row lock could not be taken within the lock timeout.
	ErrBusy = errors.New("resource busy")
	// ErrConflict means an optimistic version check or serialization check failed.
	ErrConflict = errors.New("concurrent update conflict")
	ErrInvalid  = errors.New("invalid record")
	ErrTxDone   = errors.New("transaction already finished")
)

// Tx is one unit of work over product stock and sales. Writes made through a
// Tx are invisible to other readers until Commit returns nil.
type Tx interface {
	// LockProduct returns the product as seen inside the transaction and
	// holds it against concurrent stock writers until the transaction ends.
	LockProduct(ctx context.Context, id int64) (domain.Product, error)
	// SetStock writes a new stock level if the product is still at
	// expectedVersion, returning the new version.
	SetStock(ctx context.Context, id int64, qty int, expectedVersion int64) (int64, error)
	// InsertSale writes the sale and its items, filling in their ids.
	InsertSale(ctx context.Context, sale *domain.Sale) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	CountLowStock(ctx context.Context) (int64, error)
}

// SaleReader aggregates committed, completed sales over [from, to).
type SaleReader interface {
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	SalesTotals(ctx context.Context, from, to time.Time) (domain.RangeTotals, error)
	// SalesByDay returns only days that have sales, ascending.
	SalesByDay(ctx context.Context, from, to time.Time) ([]domain.DailyTotal, error)
	SalesByPaymentMethod(ctx context.Context, from, to time.Time) ([]domain.PaymentTotal, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSales, error)
	SalesByUser(ctx context.Context, from, to time.Time) ([]domain.UserSales, error)
	CostOfGoodsSold(ctx context.Context, from, to time.Time) (money.Money, error)
}

// ExpenseLedger filters expenses by calendar date in [from, to).
type ExpenseLedger interface {
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ExpenseTotals(ctx context.Context, from, to time.Time) (domain.ExpenseTotals, error)
	ExpensesByCategory(ctx context.Context, from, to time.Time, status domain.ExpenseStatus) ([]domain.CategoryTotal, error)
}

type AuditLog interface {
	CreateAuditLog(ctx context.Context, event domain.AuditEvent) error
	ListAuditLogs(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditEvent, error)
}

type Repository interface {
	Catalog
	SaleReader
	ExpenseLedger
	AuditLog
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

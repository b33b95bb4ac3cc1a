package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Omarrio321/ElectronicsPOS/internal/checkout"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/reporting"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

const defaultAuditLimit = 100

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the entry point used by transports. It resolves the caller
// from the context and delegates to the checkout coordinator, the
// reporting aggregator and the repository.
type Service struct {
	repo        store.Repository
	coordinator *checkout.Coordinator
	reports     *reporting.Aggregator
	ledger      *inventory.Ledger
	sales       *sales.Store
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(repo store.Repository, coordinator *checkout.Coordinator, reports *reporting.Aggregator, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		coordinator: coordinator,
		reports:     reports,
		ledger:      inventory.NewLedger(repo),
		sales:       sales.NewStore(repo),
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout runs a checkout on behalf of the actor stored in ctx. Failures
// are *checkout.Error values.
func (s *Service) Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return checkout.Result{State: checkout.StateAborted}, &checkout.Error{
			Kind:    checkout.KindInvalidRequest,
			Message: "invalid checkout request: missing actor",
			Err:     ErrUnauthenticated,
		}
	}
	return s.coordinator.Checkout(ctx, req, actor)
}

func (s *Service) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: sale id must be positive", store.ErrInvalid)
	}
	return s.sales.Get(ctx, id)
}

func (s *Service) IsLowStock(ctx context.Context, productID int64) (bool, error) {
	if productID <= 0 {
		return false, fmt.Errorf("%w: product id must be positive", store.ErrInvalid)
	}
	return s.ledger.IsLowStock(ctx, productID)
}

func (s *Service) GetReport(ctx context.Context, start, end time.Time) (*domain.Report, error) {
	return s.reports.GetReport(ctx, start, end)
}

// ReportFor resolves a preset such as "weekly" together with optional
// YYYY-MM-DD overrides against the current UTC day.
func (s *Service) ReportFor(ctx context.Context, preset, startDate, endDate string) (*domain.Report, error) {
	r, err := reporting.ResolveRange(preset, startDate, endDate, s.now())
	if err != nil {
		return nil, err
	}
	return s.reports.GetRangeReport(ctx, r)
}

// ListAuditLogs returns events of one UTC day, newest first. An empty date
// means the last 24 hours.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditEvent, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultAuditLimit
	}

	var from, to time.Time
	if strings.TrimSpace(date) == "" {
		to = s.now()
		from = to.Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(domain.DateLayout, strings.TrimSpace(date))
		if err != nil {
			return nil, fmt.Errorf("%w: date %q", domain.ErrInvalidRange, date)
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.NewProduct) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	product := req.Product()
	product.SKU = strings.TrimSpace(product.SKU)
	product.Name = strings.TrimSpace(product.Name)
	if product.SKU == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", store.ErrInvalid)
	}
	if product.SellingPrice.IsNegative() || product.CostPrice.IsNegative() {
		return nil, fmt.Errorf("%w: prices must not be negative", store.ErrInvalid)
	}
	if product.QuantityInStock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", store.ErrInvalid)
	}
	if product.LowStockThreshold < 0 {
		return nil, fmt.Errorf("%w: low stock threshold must not be negative", store.ErrInvalid)
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.Int64("product_id", created.ID), zap.String("sku", created.SKU))
	return created, nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.NewExpense) (*domain.Expense, error) {
	actor, err := adminActor(ctx)
	if err != nil {
		return nil, err
	}
	expense := req.Expense()
	expense.Title = strings.TrimSpace(expense.Title)
	if expense.Title == "" {
		return nil, fmt.Errorf("%w: title is required", store.ErrInvalid)
	}
	if !expense.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalid)
	}
	if expense.Date.IsZero() {
		expense.Date = s.now()
	}
	if expense.Status == "" {
		expense.Status = domain.ExpensePending
	}
	if expense.Type == "" {
		expense.Type = domain.ExpenseIndividual
	}
	if !expense.Status.Valid() {
		return nil, fmt.Errorf("%w: expense status %q", store.ErrInvalid, expense.Status)
	}
	if !expense.Type.Valid() {
		return nil, fmt.Errorf("%w: expense type %q", store.ErrInvalid, expense.Type)
	}
	expense.UserID = actor.ID
	return s.repo.CreateExpense(ctx, expense)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrInvalid)
	}
	if category.Color == "" {
		category.Color = domain.DefaultCategoryColor
	}
	category.IsSystem = false
	return s.repo.CreateExpenseCategory(ctx, category)
}

func requireAdmin(ctx context.Context) error {
	_, err := adminActor(ctx)
	return err
}

func adminActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, ErrUnauthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

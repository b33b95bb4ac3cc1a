// Package checkout turns a cart into a committed sale.
//
// One checkout runs in a single store transaction:
//
//	Validating -> Reserving -> Persisting -> Committed
//
// with an edge to Aborted from every state. The caller's context may cancel
// the attempt up to the end of Reserving; from Persisting on, the transaction
// runs to commit or full rollback regardless of the caller.
package checkout

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Omarrio321/ElectronicsPOS/internal/audit"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/pricing"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/settings"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

const DefaultMaxAttempts = 3

// DefaultAuditTimeout bounds how long a committed checkout waits on its
// audit sinks before answering the caller.
const DefaultAuditTimeout = 2 * time.Second

type State int

const (
	StateValidating State = iota
	StateReserving
	StatePersisting
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateReserving:
		return "reserving"
	case StatePersisting:
		return "persisting"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Request struct {
	Items         []LineItem  `json:"items"`
	Discount      money.Money `json:"discount"`
	PaymentMethod string      `json:"payment_method"`
	// AmountPaid is the amount tendered; zero means exact tender.
	AmountPaid money.Money `json:"amount_paid"`
	Notes      string      `json:"notes,omitempty"`
}

type Result struct {
	SaleID     int64        `json:"sale_id"`
	GrandTotal money.Money  `json:"grand_total"`
	Sale       *domain.Sale `json:"sale,omitempty"`
	State      State        `json:"-"`
}

type TxBeginner interface {
	Begin(ctx context.Context) (store.Tx, error)
}

type Observer interface {
	ObserveCheckout(outcome string, d time.Duration)
}

type Coordinator struct {
	db          TxBeginner
	ledger      *inventory.Ledger
	sales       *sales.Store
	taxRates    settings.TaxRateProvider
	sink        audit.Sink
	observer    Observer
	logger      *zap.Logger
	maxAttempts  int
	auditTimeout time.Duration
	now          func() time.Time
}

type Option func(*Coordinator)

// WithMaxAttempts bounds retries after optimistic-concurrency conflicts.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithAuditTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.auditTimeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func New(db TxBeginner, ledger *inventory.Ledger, saleStore *sales.Store, taxRates settings.TaxRateProvider, sink audit.Sink, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	c := &Coordinator{
		db:           db,
		ledger:       ledger,
		sales:        saleStore,
		taxRates:     taxRates,
		sink:         sink,
		logger:       logger,
		maxAttempts:  DefaultMaxAttempts,
		auditTimeout: DefaultAuditTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Checkout validates the cart, reserves stock, prices the sale from the
// locked products and persists it atomically. Failures are *Error values.
func (c *Coordinator) Checkout(ctx context.Context, req Request, actor domain.Actor) (Result, error) {
	started := time.Now()
	res, err := c.checkout(ctx, req, actor)
	outcome := StateCommitted.String()
	if err != nil {
		kind, _ := KindOf(err)
		outcome = kind.String()
	}
	if c.observer != nil {
		c.observer.ObserveCheckout(outcome, time.Since(started))
	}
	return res, err
}

func (c *Coordinator) checkout(ctx context.Context, req Request, actor domain.Actor) (Result, error) {
	aborted := Result{State: StateAborted}

	cart, method, err := validate(req, actor)
	if err != nil {
		c.logger.Debug("checkout rejected", zap.String("state", StateValidating.String()), zap.Error(err))
		return aborted, err
	}
	if err := ctx.Err(); err != nil {
		return aborted, classify(err)
	}
	rate, err := c.taxRates.TaxRate(ctx)
	if err != nil {
		return aborted, classify(err)
	}
	if !rate.Valid() {
		return aborted, &Error{Kind: KindPersistenceFailure, Message: "checkout could not be saved", Err: settings.ErrInvalidTaxRate}
	}

	for attempt := 1; ; attempt++ {
		sale, err := c.attempt(ctx, cart, method, rate, req, actor)
		if err == nil {
			c.emitAudit(ctx, sale, actor)
			return Result{SaleID: sale.ID, GrandTotal: sale.GrandTotal, Sale: sale, State: StateCommitted}, nil
		}
		if errors.Is(err, store.ErrConflict) && attempt < c.maxAttempts {
			c.logger.Debug("checkout conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		failure := classify(err)
		if failure.Kind == KindPersistenceFailure {
			c.logger.Error("checkout failed", zap.String("actor", actor.Username), zap.Error(err))
		} else {
			c.logger.Debug("checkout aborted", zap.String("kind", failure.Kind.String()), zap.Error(err))
		}
		return aborted, failure
	}
}

// attempt runs Reserving and Persisting inside one transaction.
func (c *Coordinator) attempt(ctx context.Context, cart []LineItem, method domain.PaymentMethod, rate money.Rate, req Request, actor domain.Actor) (*domain.Sale, error) {
	txCtx := context.WithoutCancel(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := c.db.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("checkout state", zap.String("state", StateReserving.String()))

	reservations := make([]*inventory.Reservation, 0, len(cart))
	abort := func(cause error) error {
		for i := len(reservations) - 1; i >= 0; i-- {
			if err := c.ledger.Release(txCtx, tx, reservations[i]); err != nil {
				c.logger.Debug("release reservation", zap.Int64("product_id", reservations[i].Product.ID), zap.Error(err))
			}
		}
		if err := tx.Rollback(txCtx); err != nil {
			c.logger.Warn("rollback failed", zap.Error(err))
		}
		c.logger.Debug("checkout state", zap.String("state", StateAborted.String()))
		return cause
	}

	for _, line := range cart {
		if err := ctx.Err(); err != nil {
			return nil, abort(err)
		}
		res, err := c.ledger.CheckAndReserve(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, abort(err)
		}
		reservations = append(reservations, res)
	}
	if err := ctx.Err(); err != nil {
		return nil, abort(err)
	}

	c.logger.Debug("checkout state", zap.String("state", StatePersisting.String()))
	sale, err := c.buildSale(reservations, method, rate, req, actor)
	if err != nil {
		return nil, abort(err)
	}
	if _, err := c.sales.Insert(txCtx, tx, sale); err != nil {
		return nil, abort(err)
	}
	if err := tx.Commit(txCtx); err != nil {
		_ = tx.Rollback(txCtx)
		return nil, err
	}

	for _, res := range reservations {
		if err := c.ledger.Commit(res); err != nil {
			c.logger.Warn("commit reservation", zap.Int64("product_id", res.Product.ID), zap.Error(err))
		}
	}
	c.logger.Debug("checkout state", zap.String("state", StateCommitted.String()), zap.Int64("sale_id", sale.ID))
	return sale, nil
}

// buildSale prices the cart from the locked product rows, not from anything
// the client sent.
func (c *Coordinator) buildSale(reservations []*inventory.Reservation, method domain.PaymentMethod, rate money.Rate, req Request, actor domain.Actor) (*domain.Sale, error) {
	lines := make([]pricing.Line, 0, len(reservations))
	for _, res := range reservations {
		lines = append(lines, pricing.Line{
			ProductID: res.Product.ID,
			Quantity:  res.Quantity,
			UnitPrice: res.Product.SellingPrice,
		})
	}
	totals, err := pricing.Calculate(lines, req.Discount, rate)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, len(reservations))
	for i, res := range reservations {
		items = append(items, domain.SaleItem{
			ProductID:       res.Product.ID,
			ProductName:     res.Product.Name,
			QuantitySold:    res.Quantity,
			UnitPriceAtTime: res.Product.SellingPrice,
			TotalPrice:      totals.LineTotals[i],
		})
	}

	paid := req.AmountPaid
	if paid.IsZero() {
		paid = totals.GrandTotal
	}
	change := money.Zero()
	if method == domain.PaymentCash {
		change = money.Max(money.Zero(), paid.Sub(totals.GrandTotal))
	}

	return &domain.Sale{
		UserID:        actor.ID,
		Username:      actor.Username,
		Subtotal:      totals.Subtotal,
		TaxRate:       totals.TaxRate,
		TaxAmount:     totals.TaxAmount,
		Discount:      totals.Discount,
		GrandTotal:    totals.GrandTotal,
		PaymentMethod: method,
		AmountPaid:    paid,
		ChangeGiven:   change,
		Status:        domain.SaleCompleted,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     c.now(),
		Items:         items,
	}, nil
}

// emitAudit records POS_CHECKOUT. The sale is already committed, so a sink
// failure is logged and dropped.
func (c *Coordinator) emitAudit(ctx context.Context, sale *domain.Sale, actor domain.Actor) {
	event := audit.Stamp(domain.AuditEvent{
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        domain.ActionCheckout,
		TargetType:    "sale",
		TargetID:      strconv.FormatInt(sale.ID, 10),
		Detail: map[string]any{
			"sale_id":        sale.ID,
			"grand_total":    sale.GrandTotal.String(),
			"items_count":    len(sale.Items),
			"payment_method": sale.PaymentMethod.Label(),
		},
	}, c.now())

	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.auditTimeout)
	defer cancel()
	if err := c.sink.Emit(emitCtx, event); err != nil {
		c.logger.Warn("audit emit failed", zap.Int64("sale_id", sale.ID), zap.String("action", event.Action), zap.Error(err))
	}
}

func acceptedMethods() string {
	labels := make([]string, 0, 3)
	for _, m := range domain.PaymentMethods() {
		labels = append(labels, m.Label())
	}
	return strings.Join(labels, ", ")
}

// validate checks the request before any storage access and returns the
// cart with quantities merged per product, sorted by product id so
// concurrent checkouts always lock rows in the same order.
func validate(req Request, actor domain.Actor) ([]LineItem, domain.PaymentMethod, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, "", invalid("missing actor")
	}
	if len(req.Items) == 0 {
		return nil, "", invalid("cart is empty")
	}
	if req.Discount.IsNegative() {
		return nil, "", invalid("discount must not be negative")
	}
	if req.AmountPaid.IsNegative() {
		return nil, "", invalid("amount paid must not be negative")
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, "", invalid("unknown payment method %q, accepted: %s", req.PaymentMethod, acceptedMethods())
	}

	merged := map[int64]int{}
	for _, item := range req.Items {
		if item.ProductID <= 0 {
			return nil, "", invalid("product id must be positive")
		}
		if item.Quantity <= 0 {
			return nil, "", invalid("quantity for product %d must be positive", item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}

	cart := make([]LineItem, 0, len(merged))
	for id, qty := range merged {
		cart = append(cart, LineItem{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(cart, func(a, b LineItem) int {
		switch {
		case a.ProductID < b.ProductID:
			return -1
		case a.ProductID > b.ProductID:
			return 1
		}
		return 0
	})
	return cart, method, nil
}

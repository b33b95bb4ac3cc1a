package domain

import (
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/money"
)

const DefaultLowStockThreshold = 10

type Product struct {
	ID                int64       `json:"id"`
	Name              string      `json:"name"`
	CategoryID        *int64      `json:"category_id,omitempty"`
	SKU               string      `json:"sku"`
	Barcode           *string     `json:"barcode,omitempty"`
	CostPrice         money.Money `json:"cost_price"`
	SellingPrice      money.Money `json:"selling_price"`
	QuantityInStock   int         `json:"quantity_in_stock"`
	LowStockThreshold int         `json:"low_stock_threshold"`
	IsActive          bool        `json:"is_active"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (p Product) IsLowStock() bool {
	return p.QuantityInStock <= p.LowStockThreshold
}

// NewProduct is the payload for adding a product to the catalog. Omitted
// optional fields take their defaults: active, and the default threshold.
type NewProduct struct {
	Name              string      `json:"name"`
	CategoryID        *int64      `json:"category_id,omitempty"`
	SKU               string      `json:"sku"`
	Barcode           *string     `json:"barcode,omitempty"`
	CostPrice         money.Money `json:"cost_price"`
	SellingPrice      money.Money `json:"selling_price"`
	QuantityInStock   int         `json:"quantity_in_stock"`
	LowStockThreshold *int        `json:"low_stock_threshold,omitempty"`
	IsActive          *bool       `json:"is_active,omitempty"`
}

func (n NewProduct) Product() Product {
	p := Product{
		Name:              n.Name,
		CategoryID:        n.CategoryID,
		SKU:               n.SKU,
		Barcode:           n.Barcode,
		CostPrice:         n.CostPrice,
		SellingPrice:      n.SellingPrice,
		QuantityInStock:   n.QuantityInStock,
		LowStockThreshold: DefaultLowStockThreshold,
		IsActive:          true,
	}
	if n.LowStockThreshold != nil {
		p.LowStockThreshold = *n.LowStockThreshold
	}
	if n.IsActive != nil {
		p.IsActive = *n.IsActive
	}
	return p
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleRefunded  SaleStatus = "refunded"
	SaleVoided    SaleStatus = "voided"
)

type Sale struct {
	ID            int64         `json:"id"`
	UserID        string        `json:"user_id"`
	Username      string        `json:"username"`
	Subtotal      money.Money   `json:"subtotal"`
	TaxRate       money.Rate    `json:"tax_rate"`
	TaxAmount     money.Money   `json:"tax_amount"`
	Discount      money.Money   `json:"discount"`
	GrandTotal    money.Money   `json:"grand_total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	AmountPaid    money.Money   `json:"amount_paid"`
	ChangeGiven   money.Money   `json:"change_given"`
	Status        SaleStatus    `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []SaleItem    `json:"items"`
}

// ItemCount is the number of units sold across all items.
func (s Sale) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.QuantitySold
	}
	return n
}

type SaleItem struct {
	ID              int64       `json:"id"`
	SaleID          int64       `json:"sale_id"`
	ProductID       int64       `json:"product_id"`
	ProductName     string      `json:"product_name"`
	QuantitySold    int         `json:"quantity_sold"`
	UnitPriceAtTime money.Money `json:"unit_price_at_time"`
	TotalPrice      money.Money `json:"total_price"`
}

type ExpenseType string

const (
	ExpenseMonthly    ExpenseType = "monthly"
	ExpenseIndividual ExpenseType = "individual"
)

func (t ExpenseType) Valid() bool {
	return t == ExpenseMonthly || t == ExpenseIndividual
}

type ExpenseStatus string

const (
	ExpensePending ExpenseStatus = "pending"
	ExpensePaid    ExpenseStatus = "paid"
)

func (s ExpenseStatus) Valid() bool {
	return s == ExpensePending || s == ExpensePaid
}

const DefaultCategoryColor = "#6c757d"

type ExpenseCategory struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

type Expense struct {
	ID         int64         `json:"id"`
	CategoryID int64         `json:"category_id"`
	UserID     string        `json:"user_id"`
	Title      string        `json:"title"`
	Amount     money.Money   `json:"amount"`
	Date       time.Time     `json:"date"`
	Type       ExpenseType   `json:"expense_type"`
	Status     ExpenseStatus `json:"status"`
	Reference  string        `json:"reference,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewExpense is the payload for recording an expense. A zero date means
// today; blank type and status default to individual and pending.
type NewExpense struct {
	CategoryID int64         `json:"category_id"`
	Title      string        `json:"title"`
	Amount     money.Money   `json:"amount"`
	Date       Date          `json:"date"`
	Type       ExpenseType   `json:"expense_type"`
	Status     ExpenseStatus `json:"status"`
	Reference  string        `json:"reference,omitempty"`
	Notes      string        `json:"notes,omitempty"`
}

func (n NewExpense) Expense() Expense {
	return Expense{
		CategoryID: n.CategoryID,
		Title:      n.Title,
		Amount:     n.Amount,
		Date:       n.Date.Time,
		Type:       n.Type,
		Status:     n.Status,
		Reference:  n.Reference,
		Notes:      n.Notes,
	}
}

type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const ActionCheckout = "POS_CHECKOUT"

type AuditEvent struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actor_id"`
	ActorUsername string         `json:"actor_username"`
	ActorRole     string         `json:"actor_role"`
	Action        string         `json:"action"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	Detail        map[string]any `json:"detail"`
	CreatedAt     time.Time      `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/money"
)

const DateLayout = "2006-01-02"

// MaxRangeDays bounds a report range so a gap-filled series stays small.
const MaxRangeDays = 3660

var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of UTC calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	if r.Days() > MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: more than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return r, nil
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidRange, end)
	}
	return NewDateRange(s, e)
}

// Bounds returns the half-open instant interval [from, to) covering the range.
func (r DateRange) Bounds() (from, to time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

// Days is the number of calendar days in the range, end included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type RangeTotals struct {
	Count      int64       `json:"count"`
	GrandTotal money.Money `json:"grand_total"`
	Subtotal   money.Money `json:"subtotal"`
	TaxAmount  money.Money `json:"tax_amount"`
	Discount   money.Money `json:"discount"`
	ItemsSold  int64       `json:"items_sold"`
}

type DailyTotal struct {
	Date  string      `json:"date"`
	Total money.Money `json:"total"`
}

type PaymentTotal struct {
	Method PaymentMethod `json:"method"`
	Label  string        `json:"label"`
	Count  int64         `json:"count"`
	Total  money.Money   `json:"total"`
}

type ProductSales struct {
	ProductID    int64       `json:"product_id"`
	Name         string      `json:"name"`
	QuantitySold int64       `json:"quantity_sold"`
	Revenue      money.Money `json:"revenue"`
}

type UserSales struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Count    int64       `json:"count"`
	Total    money.Money `json:"total"`
}

type ExpenseTotals struct {
	Paid    money.Money `json:"paid"`
	Pending money.Money `json:"pending"`
}

type CategoryTotal struct {
	CategoryID int64       `json:"category_id"`
	Name       string      `json:"name"`
	Color      string      `json:"color"`
	Total      money.Money `json:"total"`
}

type Report struct {
	StartDate          string          `json:"start_date"`
	EndDate            string          `json:"end_date"`
	Revenue            money.Money     `json:"revenue"`
	OrderCount         int64           `json:"order_count"`
	ItemsSold          int64           `json:"items_sold"`
	Subtotal           money.Money     `json:"subtotal"`
	Tax                money.Money     `json:"tax"`
	Discount           money.Money     `json:"discount"`
	COGS               money.Money     `json:"cogs"`
	GrossProfit        money.Money     `json:"gross_profit"`
	PaidExpenses       money.Money     `json:"paid_expenses"`
	PendingExpenses    money.Money     `json:"pending_expenses"`
	TotalExpenses      money.Money     `json:"total_expenses"`
	NetProfit          money.Money     `json:"net_profit"`
	AverageOrderValue  money.Money     `json:"average_order_value"`
	DailySeries        []DailyTotal    `json:"daily_series"`
	TopProducts        []ProductSales  `json:"top_products"`
	PaymentBreakdown   []PaymentTotal  `json:"payment_breakdown"`
	SalesByUser        []UserSales     `json:"sales_by_user"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	LowStockCount      int64           `json:"low_stock_count"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// Package settings supplies request-scoped store settings to the core.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/Omarrio321/ElectronicsPOS/internal/money"
)

const DefaultTaxRate = "0.08"

var ErrInvalidTaxRate = errors.New("tax rate must be a fraction between 0 and 1")

// TaxRateProvider returns the tax rate in force for the current request.
// Callers fetch it once per checkout and do not cache it.
type TaxRateProvider interface {
	TaxRate(ctx context.Context) (money.Rate, error)
}

type ProviderFunc func(ctx context.Context) (money.Rate, error)

func (f ProviderFunc) TaxRate(ctx context.Context) (money.Rate, error) { return f(ctx) }

type Static struct {
	rate money.Rate
}

func NewStatic(rate money.Rate) (*Static, error) {
	if !rate.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTaxRate, rate)
	}
	return &Static{rate: rate}, nil
}

// ParseStatic builds a Static provider from its string form, e.g. "0.08".
func ParseStatic(raw string) (*Static, error) {
	rate, err := money.ParseRate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaxRate, err)
	}
	return NewStatic(rate)
}

func (s *Static) TaxRate(context.Context) (money.Rate, error) {
	return s.rate, nil
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// PaymentMethod is the storage code of a tender type.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCard        PaymentMethod = "card"
	PaymentMobileMoney PaymentMethod = "mobile_money"
)

// paymentMethods maps storage codes to display labels and back. Lookups in
// either direction go through this table only.
var paymentMethods = []struct {
	method PaymentMethod
	label  string
}{
	{PaymentCash, "Cash"},
	{PaymentCard, "Card"},
	{PaymentMobileMoney, "Mobile Money"},
}

// ParsePaymentMethod accepts a display label ("Mobile Money"), its compact
// form ("MobileMoney") or a storage code ("mobile_money"). Case, spaces and
// underscores are ignored.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	key := normalizePaymentKey(raw)
	if key != "" {
		for _, pm := range paymentMethods {
			if key == normalizePaymentKey(pm.label) {
				return pm.method, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, raw)
}

func normalizePaymentKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func (m PaymentMethod) Valid() bool {
	for _, pm := range paymentMethods {
		if pm.method == m {
			return true
		}
	}
	return false
}

func (m PaymentMethod) Label() string {
	for _, pm := range paymentMethods {
		if pm.method == m {
			return pm.label
		}
	}
	return string(m)
}

// PaymentMethods lists every known method in display order.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, 0, len(paymentMethods))
	for _, pm := range paymentMethods {
		out = append(out, pm.method)
	}
	return out
}

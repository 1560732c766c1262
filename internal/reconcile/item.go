package reconcile

import (
	"math"
	"time"

	"github.com/usagegate/usagegate/internal/billing/provider"
)

// MinorUnits rounds a major-unit amount to the currency's minor unit.
// Every amount that reaches the provider goes through here.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// BuildUsageItem converts a usage amount in major currency units into a
// provider invoice item payload. The amount is rounded to the minor
// unit and clamped at zero: credits go through proration deletion, not
// negative items.
func BuildUsageItem(amount float64, description, currency string, periodStart, periodEnd time.Time, customerRef, productRef string) provider.InvoiceItem {
	minor := MinorUnits(amount)
	if minor < 0 {
		minor = 0
	}
	return provider.InvoiceItem{
		CustomerID:  customerRef,
		ProductID:   productRef,
		Description: description,
		Currency:    currency,
		Amount:      minor,
		Period: provider.Period{
			Start: periodStart.Unix(),
			End:   periodEnd.Unix(),
		},
	}
}

// MajorAmount converts minor units back to major currency units.
func MajorAmount(minor int64) float64 {
	return float64(minor) / 100
}

// correctionItem is the signed counterpart of BuildUsageItem: plan
// creates keep their sign because credits are negative line items.
func correctionItem(customerRef string, c Create) provider.InvoiceItem {
	return provider.InvoiceItem{
		CustomerID:  customerRef,
		Description: c.Description,
		Currency:    c.Currency,
		Amount:      c.Amount,
		Period:      c.Period,
	}
}

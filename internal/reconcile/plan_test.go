package reconcile

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usagegate/usagegate/internal/billing/provider"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
)

var testNode, _ = snowflake.NewNode(1)

func seatPrice(interval pricedomain.BillingInterval, unitAmount, included float64, processorPriceID string) pricedomain.Price {
	featureID := "seats"
	var ref *string
	if processorPriceID != "" {
		ref = &processorPriceID
	}
	return pricedomain.Price{
		ID:               testNode.Generate(),
		FeatureID:        &featureID,
		BillingInterval:  interval,
		BillingType:      pricedomain.InArrearProrated,
		UnitAmount:       unitAmount,
		IncludedUnits:    included,
		ProcessorPriceID: ref,
	}
}

func seatSubscription(price pricedomain.Price, remaining float64, periodStart, periodEnd time.Time) *customerdomain.CustomerProduct {
	subID := "sub_123"
	return &customerdomain.CustomerProduct{
		ID:                 testNode.Generate(),
		ProductName:        "Team",
		Status:             customerdomain.StatusActive,
		SubscriptionID:     &subID,
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
		Prices:             []pricedomain.Price{price},
		Entitlements: []customerdomain.CustomerEntitlement{
			{
				ID:        testNode.Generate(),
				FeatureID: "seats",
				Balance:   &remaining,
			},
		},
	}
}

func TestPlanEmptyWhenIntervalsDiffer(t *testing.T) {
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	current := seatSubscription(seatPrice(pricedomain.Month, 10, 10, "price_old"), 4, periodStart, periodEnd)
	newProduct := &productdomain.Product{
		Name:   "Business",
		Prices: []pricedomain.Price{seatPrice(pricedomain.Year, 100, 10, "price_new")},
	}

	plan := BuildPlan(PlanInput{
		Now:      periodStart.Add(20 * 24 * time.Hour),
		Currency: "usd",
		Current:  current,
		New:      newProduct,
	})

	assert.False(t, plan.SameIntervals)
	assert.Empty(t, plan.OldItems)
	assert.Empty(t, plan.NewItems)
	assert.Empty(t, plan.Deletes)
	assert.Empty(t, plan.Creates)
}

func TestPlanMidCycleSeatChange(t *testing.T) {
	// 30-day period, 20 days elapsed, 10 days left.
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	now := periodStart.Add(20 * 24 * time.Hour)

	// 10 seats included, 4 remaining: 6 in use.
	current := seatSubscription(seatPrice(pricedomain.Month, 10, 10, "price_old"), 4, periodStart, periodEnd)
	newProduct := &productdomain.Product{
		Name:   "Business",
		Prices: []pricedomain.Price{seatPrice(pricedomain.Month, 12, 10, "price_new")},
	}

	lines := []provider.InvoiceLine{
		{ID: "il_1", InvoiceItemID: "ii_1", Proration: true, PriceID: "price_old", Amount: -1500},
		{ID: "il_2", InvoiceItemID: "ii_2", Proration: false, PriceID: "price_old", Amount: 6000},
		{ID: "il_3", InvoiceItemID: "ii_3", Proration: true, PriceID: "price_unrelated", Amount: -300},
	}

	plan := BuildPlan(PlanInput{
		Now:      now,
		Currency: "usd",
		Current:  current,
		New:      newProduct,
		Lines:    lines,
		Interval: pricedomain.Month,
	})

	require.True(t, plan.SameIntervals)

	// Credit for 10 unused days of 6 seats at $10: -(6*10*10/30) = -20.
	require.Len(t, plan.OldItems, 1)
	assert.InDelta(t, -20.0, plan.OldItems[0].Amount, 1e-9)

	// Charge for 20 elapsed days of 6 seats at $12: 6*12*20/30 = 48.
	require.Len(t, plan.NewItems, 1)
	assert.InDelta(t, 48.0, plan.NewItems[0].Amount, 1e-9)

	// Only the provider's own proration line on a continuous-use price
	// is deleted.
	assert.Equal(t, []string{"ii_1"}, plan.Deletes)

	require.Len(t, plan.Creates, 2)
	assert.Equal(t, int64(-2000), plan.Creates[0].Amount)
	assert.Equal(t, int64(4800), plan.Creates[1].Amount)
	assert.Equal(t, now.Unix(), plan.Creates[0].Period.Start)
	assert.Equal(t, periodEnd.Unix(), plan.Creates[0].Period.End)
}

func TestPlanIntervalGuardSkipsOtherSubscriptions(t *testing.T) {
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	now := periodStart.Add(15 * 24 * time.Hour)

	monthly := seatPrice(pricedomain.Month, 10, 10, "price_m")
	yearly := seatPrice(pricedomain.Year, 100, 10, "price_y")

	current := seatSubscription(monthly, 4, periodStart, periodEnd)
	current.Prices = append(current.Prices, yearly)

	newProduct := &productdomain.Product{
		Name:   "Business",
		Prices: []pricedomain.Price{seatPrice(pricedomain.Month, 12, 10, "price_n"), seatPrice(pricedomain.Year, 110, 10, "price_ny")},
	}

	plan := BuildPlan(PlanInput{
		Now:      now,
		Currency: "usd",
		Current:  current,
		New:      newProduct,
		Interval: pricedomain.Month,
	})

	require.True(t, plan.SameIntervals)
	for _, c := range plan.Creates {
		// Yearly items never make it into a monthly correction.
		assert.NotContains(t, c.Description, "price_y")
	}
	// Two monthly items (old credit + new charge), yearly ones skipped.
	assert.Len(t, plan.Creates, 2)
}

func TestPlanZeroUsageProducesNoItems(t *testing.T) {
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	// All 10 seats unused.
	current := seatSubscription(seatPrice(pricedomain.Month, 10, 10, "price_old"), 10, periodStart, periodEnd)
	newProduct := &productdomain.Product{
		Name:   "Business",
		Prices: []pricedomain.Price{seatPrice(pricedomain.Month, 12, 10, "price_new")},
	}

	plan := BuildPlan(PlanInput{
		Now:      periodStart.Add(10 * 24 * time.Hour),
		Currency: "usd",
		Current:  current,
		New:      newProduct,
	})

	assert.True(t, plan.SameIntervals)
	assert.Empty(t, plan.OldItems)
	assert.Empty(t, plan.NewItems)
	assert.Empty(t, plan.Creates)
}

func TestIntervalsAreSameIgnoresOneOffPrices(t *testing.T) {
	oneOff := pricedomain.Price{BillingType: pricedomain.OneOff}
	monthly := seatPrice(pricedomain.Month, 10, 0, "")

	assert.True(t, IntervalsAreSame(
		[]pricedomain.Price{monthly, oneOff},
		[]pricedomain.Price{monthly},
	))
	assert.False(t, IntervalsAreSame(
		[]pricedomain.Price{monthly},
		[]pricedomain.Price{seatPrice(pricedomain.Quarter, 30, 0, "")},
	))
}

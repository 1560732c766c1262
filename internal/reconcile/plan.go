// Package reconcile corrects provider-side proration when a customer's
// continuously-billed product changes mid-cycle. Plans are computed
// pure and executed against the billing provider separately.
package reconcile

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/billing/provider"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
)

// Item is one computed usage delta, in major currency units, signed.
// Credits are negative.
type Item struct {
	PriceID     snowflake.ID
	FeatureID   string
	Description string
	Amount      float64
	Interval    pricedomain.BillingInterval
}

// Create is a provider invoice item ready to issue: amount rounded to
// minor units, signed.
type Create struct {
	Description string
	Amount      int64
	Currency    string
	Period      provider.Period
}

// Plan is the full correction for one plan change. Execution walks
// Deletes then Creates, in order.
type Plan struct {
	SameIntervals bool
	OldItems      []Item
	NewItems      []Item
	// Deletes holds provider invoice item ids behind proration lines
	// the provider generated on its own.
	Deletes []string
	Creates []Create
}

type PlanInput struct {
	Now      time.Time
	Currency string
	// Current is the customer's subscription being replaced, loaded
	// with prices and entitlements.
	Current *customerdomain.CustomerProduct
	// New is the catalog product being attached.
	New *productdomain.Product
	// Lines are the provider's upcoming, not-yet-invoiced lines for
	// the active subscription.
	Lines []provider.InvoiceLine
	// Interval restricts item creation to one subscription interval.
	// Empty means no restriction.
	Interval pricedomain.BillingInterval
}

// BuildPlan computes the correction. When old and new products bill on
// different intervals the plan is empty and the provider's own
// proration stands.
func BuildPlan(in PlanInput) Plan {
	if !IntervalsAreSame(in.Current.Prices, in.New.Prices) {
		return Plan{OldItems: []Item{}, NewItems: []Item{}}
	}

	plan := Plan{
		SameIntervals: true,
		OldItems:      []Item{},
		NewItems:      []Item{},
	}

	if in.Current.CurrentPeriodStart == nil || in.Current.CurrentPeriodEnd == nil {
		return plan
	}
	periodStart := *in.Current.CurrentPeriodStart
	periodEnd := *in.Current.CurrentPeriodEnd
	length := periodEnd.Sub(periodStart)
	if length <= 0 || in.Now.Before(periodStart) || in.Now.After(periodEnd) {
		return plan
	}

	unusedFrac := periodEnd.Sub(in.Now).Seconds() / length.Seconds()
	elapsedFrac := in.Now.Sub(periodStart).Seconds() / length.Seconds()

	for i := range in.Current.Prices {
		price := &in.Current.Prices[i]
		if !price.ContinuousUse() || price.FeatureID == nil {
			continue
		}
		used := usedUnits(in.Current, *price.FeatureID)
		if used == 0 {
			continue
		}
		plan.OldItems = append(plan.OldItems, Item{
			PriceID:   price.ID,
			FeatureID: *price.FeatureID,
			Description: fmt.Sprintf("%s - unused %s (from %s)",
				in.Current.ProductName, *price.FeatureID, in.Now.UTC().Format("2 Jan 2006")),
			Amount:   -(used * price.UnitAmount * unusedFrac),
			Interval: price.BillingInterval,
		})
	}

	for i := range in.New.Prices {
		price := &in.New.Prices[i]
		if !price.ContinuousUse() || price.FeatureID == nil {
			continue
		}
		// Usage carries over: the seats in use on the old product are
		// the seats in use on the new one.
		used := usedUnits(in.Current, *price.FeatureID)
		if used == 0 {
			continue
		}
		plan.NewItems = append(plan.NewItems, Item{
			PriceID:   price.ID,
			FeatureID: *price.FeatureID,
			Description: fmt.Sprintf("%s - %s (from %s)",
				in.New.Name, *price.FeatureID, periodStart.UTC().Format("2 Jan 2006")),
			Amount:   used * price.UnitAmount * elapsedFrac,
			Interval: price.BillingInterval,
		})
	}

	plan.Deletes = prorationDeletes(in.Lines, in.Current.Prices, in.New.Prices)
	plan.Creates = buildCreates(plan.OldItems, plan.NewItems, in)
	return plan
}

// IntervalsAreSame compares the distinct recurring billing intervals of
// the two price sets.
func IntervalsAreSame(oldPrices, newPrices []pricedomain.Price) bool {
	oldSet := intervalSet(oldPrices)
	newSet := intervalSet(newPrices)
	if len(oldSet) != len(newSet) {
		return false
	}
	for interval := range oldSet {
		if !newSet[interval] {
			return false
		}
	}
	return true
}

func intervalSet(prices []pricedomain.Price) map[pricedomain.BillingInterval]bool {
	set := make(map[pricedomain.BillingInterval]bool, len(prices))
	for i := range prices {
		if prices[i].BillingType == pricedomain.OneOff {
			continue
		}
		set[prices[i].BillingInterval] = true
	}
	return set
}

func prorationDeletes(lines []provider.InvoiceLine, priceSets ...[]pricedomain.Price) []string {
	deletes := make([]string, 0)
	for _, line := range lines {
		if !line.Proration || line.InvoiceItemID == "" {
			continue
		}
		if matchContinuousPrice(line.PriceID, priceSets...) {
			deletes = append(deletes, line.InvoiceItemID)
		}
	}
	return deletes
}

func matchContinuousPrice(processorPriceID string, priceSets ...[]pricedomain.Price) bool {
	if processorPriceID == "" {
		return false
	}
	for _, prices := range priceSets {
		for i := range prices {
			p := &prices[i]
			if p.ContinuousUse() && p.ProcessorPriceID != nil && *p.ProcessorPriceID == processorPriceID {
				return true
			}
		}
	}
	return false
}

func buildCreates(oldItems, newItems []Item, in PlanInput) []Create {
	creates := make([]Create, 0, len(oldItems)+len(newItems))
	periodEnd := in.Current.CurrentPeriodEnd

	for _, item := range append(append([]Item{}, oldItems...), newItems...) {
		minor := MinorUnits(item.Amount)
		if minor == 0 {
			continue
		}
		// A customer can hold subscriptions on several intervals; only
		// correct the one being changed.
		if in.Interval != "" && item.Interval != in.Interval {
			continue
		}
		creates = append(creates, Create{
			Description: item.Description,
			Amount:      minor,
			Currency:    in.Currency,
			Period: provider.Period{
				Start: in.Now.Unix(),
				End:   periodEnd.Unix(),
			},
		})
	}
	return creates
}

// usedUnits derives consumed units for a feature on a subscription from
// the gap between the price's included allowance and the remaining
// entitlement balance.
func usedUnits(cp *customerdomain.CustomerProduct, featureID string) float64 {
	var included float64
	for i := range cp.Prices {
		p := &cp.Prices[i]
		if p.FeatureID != nil && *p.FeatureID == featureID {
			included = p.IncludedUnits
			break
		}
	}

	var remaining float64
	found := false
	for i := range cp.Entitlements {
		ent := &cp.Entitlements[i]
		if ent.FeatureID != featureID {
			continue
		}
		found = true
		scope, err := ent.Scope()
		if err != nil {
			continue
		}
		if scope.Kind == customerdomain.ScopePerEntity {
			for _, eb := range scope.Entities {
				remaining += eb.Balance
			}
			continue
		}
		remaining += scope.Balance
	}
	if !found {
		return 0
	}

	used := included - remaining
	if used < 0 {
		return 0
	}
	return used
}

// Package entitlement implements balance aggregation and the allow/deny
// evaluation for feature checks.
package entitlement

import (
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
)

// Aggregated is one entitlement tagged with its owning subscription.
type Aggregated struct {
	Entitlement customerdomain.CustomerEntitlement
	Product     *customerdomain.CustomerProduct
}

// Aggregate flattens a customer's subscriptions to entitlement records.
// Past-due subscriptions are dropped unless the organization opts in.
// When the check is scoped to one entity, subscriptions restricted to a
// different entity are dropped; customer-wide subscriptions remain.
// Order is subscription order, then entitlement order within each, and
// decides which entitlement matches first during evaluation.
func Aggregate(customer *customerdomain.Customer, includePastDue bool, entity *customerdomain.Entity) []Aggregated {
	out := make([]Aggregated, 0)
	for i := range customer.Products {
		product := &customer.Products[i]
		if !product.Counted(includePastDue) {
			continue
		}
		if entity != nil && product.InternalEntityID != nil && *product.InternalEntityID != entity.InternalID {
			continue
		}
		for j := range product.Entitlements {
			out = append(out, Aggregated{
				Entitlement: product.Entitlements[j],
				Product:     product,
			})
		}
	}
	return out
}

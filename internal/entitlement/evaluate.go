package entitlement

import (
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
)

// FeatureBalance is one candidate's computed pair. Required and Balance
// are nil when comparison was short-circuited.
type FeatureBalance struct {
	FeatureID    string   `json:"feature_id"`
	Required     *float64 `json:"required,omitempty"`
	Balance      *float64 `json:"balance,omitempty"`
	Unlimited    bool     `json:"unlimited"`
	UsageAllowed bool     `json:"usage_allowed"`
}

// Result is the outcome of a metered evaluation. Balances holds the
// matched candidate when allowed, or every candidate's pair when the
// chain was exhausted.
type Result struct {
	Allowed  bool
	Balances []FeatureBalance
}

// EvaluateBoolean allows when any aggregated entitlement references the
// feature. No balance arithmetic.
func EvaluateBoolean(featureID string, entitlements []Aggregated) bool {
	for i := range entitlements {
		if entitlements[i].Entitlement.FeatureID == featureID {
			return true
		}
	}
	return false
}

// EvaluateMetered walks the candidate chain, the requested feature
// first and then each credit system in catalog order, first match wins.
func EvaluateMetered(res featuredomain.Resolution, entitlements []Aggregated, entityID string, quantity float64) (Result, error) {
	candidates := make([]featuredomain.Feature, 0, 1+len(res.CreditSystems))
	candidates = append(candidates, res.Feature)
	candidates = append(candidates, res.CreditSystems...)

	result := Result{Balances: make([]FeatureBalance, 0, len(candidates))}
	for i := range candidates {
		f := &candidates[i]

		matching := matchingEntitlements(f.ID, entitlements)
		if len(matching) == 0 {
			continue
		}

		hasUnlimited, hasUsageAllowed := false, false
		for _, ent := range matching {
			hasUnlimited = hasUnlimited || ent.Unlimited
			hasUsageAllowed = hasUsageAllowed || ent.UsageAllowed
		}

		// A grant with no upper bound is a guaranteed match: no
		// numeric comparison makes sense against it.
		if hasUnlimited || hasUsageAllowed {
			fb := FeatureBalance{
				FeatureID:    f.ID,
				Unlimited:    hasUnlimited,
				UsageAllowed: hasUsageAllowed,
			}
			if !hasUnlimited {
				actual, err := sumBalances(matching, entityID)
				if err != nil {
					return Result{}, err
				}
				fb.Balance = &actual
			}
			result.Allowed = true
			result.Balances = append(result.Balances, fb)
			return result, nil
		}

		required := quantity
		if f.Type == featuredomain.FeatureTypeCreditSystem && f.ID != res.Feature.ID {
			item := f.SchemaItemFor(res.Feature.ID)
			if item == nil {
				continue
			}
			required = quantity * item.CreditCost
		}

		actual, err := sumBalances(matching, entityID)
		if err != nil {
			return Result{}, err
		}

		req, bal := required, actual
		result.Balances = append(result.Balances, FeatureBalance{
			FeatureID: f.ID,
			Required:  &req,
			Balance:   &bal,
		})

		if actual >= required {
			result.Allowed = true
			return result, nil
		}
	}

	return result, nil
}

func matchingEntitlements(featureID string, entitlements []Aggregated) []customerdomain.CustomerEntitlement {
	out := make([]customerdomain.CustomerEntitlement, 0)
	for i := range entitlements {
		if entitlements[i].Entitlement.FeatureID == featureID {
			out = append(out, entitlements[i].Entitlement)
		}
	}
	return out
}

// sumBalances totals matching entitlement balances. Entity-scoped
// checks read only that entity's slice of per-entity records; a record
// the entity is absent from contributes zero. Unscoped checks sum every
// entity. Global records contribute their scalar either way.
func sumBalances(matching []customerdomain.CustomerEntitlement, entityID string) (float64, error) {
	var total float64
	for i := range matching {
		scope, err := matching[i].Scope()
		if err != nil {
			return 0, err
		}

		switch scope.Kind {
		case customerdomain.ScopePerEntity:
			if entityID != "" {
				total += scope.Entities[entityID].Balance
				continue
			}
			for _, eb := range scope.Entities {
				total += eb.Balance
			}
		default:
			total += scope.Balance
		}
	}
	return total, nil
}

package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
)

func customerWithProducts(products ...customerdomain.CustomerProduct) *customerdomain.Customer {
	return &customerdomain.Customer{
		InternalID: testNode.Generate(),
		ID:         "cus-1",
		Products:   products,
	}
}

func TestAggregateDropsPastDueByDefault(t *testing.T) {
	customer := customerWithProducts(
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusActive,
			Entitlements: []customerdomain.CustomerEntitlement{grant("api-calls", 10)},
		},
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusPastDue,
			Entitlements: []customerdomain.CustomerEntitlement{grant("api-calls", 90)},
		},
	)

	out := Aggregate(customer, false, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, *out[0].Entitlement.Balance)

	out = Aggregate(customer, true, nil)
	assert.Len(t, out, 2)
}

func TestAggregateDropsExpiredAndScheduled(t *testing.T) {
	customer := customerWithProducts(
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusExpired,
			Entitlements: []customerdomain.CustomerEntitlement{grant("api-calls", 10)},
		},
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusScheduled,
			Entitlements: []customerdomain.CustomerEntitlement{grant("api-calls", 20)},
		},
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusTrialing,
			Entitlements: []customerdomain.CustomerEntitlement{grant("api-calls", 30)},
		},
	)

	out := Aggregate(customer, false, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 30.0, *out[0].Entitlement.Balance)
}

func TestAggregateEntityFilter(t *testing.T) {
	wanted := testNode.Generate()
	other := testNode.Generate()
	entity := &customerdomain.Entity{InternalID: wanted, ID: "seat-1"}

	customer := customerWithProducts(
		customerdomain.CustomerProduct{
			ID:               testNode.Generate(),
			Status:           customerdomain.StatusActive,
			InternalEntityID: &other,
			Entitlements:     []customerdomain.CustomerEntitlement{grant("seats", 1)},
		},
		customerdomain.CustomerProduct{
			ID:               testNode.Generate(),
			Status:           customerdomain.StatusActive,
			InternalEntityID: &wanted,
			Entitlements:     []customerdomain.CustomerEntitlement{grant("seats", 2)},
		},
		customerdomain.CustomerProduct{
			ID:           testNode.Generate(),
			Status:       customerdomain.StatusActive,
			Entitlements: []customerdomain.CustomerEntitlement{grant("seats", 3)},
		},
	)

	out := Aggregate(customer, false, entity)
	require.Len(t, out, 2)
	// Restricted-to-match first, then the customer-wide grant.
	assert.Equal(t, 2.0, *out[0].Entitlement.Balance)
	assert.Equal(t, 3.0, *out[1].Entitlement.Balance)

	// Unscoped check keeps everything.
	out = Aggregate(customer, false, nil)
	assert.Len(t, out, 3)
}

func TestAggregatePreservesInsertionOrder(t *testing.T) {
	customer := customerWithProducts(
		customerdomain.CustomerProduct{
			ID:     testNode.Generate(),
			Status: customerdomain.StatusActive,
			Entitlements: []customerdomain.CustomerEntitlement{
				grant("a", 1), grant("b", 2),
			},
		},
		customerdomain.CustomerProduct{
			ID:     testNode.Generate(),
			Status: customerdomain.StatusActive,
			Entitlements: []customerdomain.CustomerEntitlement{
				grant("c", 3),
			},
		},
	)

	out := Aggregate(customer, false, nil)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Entitlement.FeatureID)
	assert.Equal(t, "b", out[1].Entitlement.FeatureID)
	assert.Equal(t, "c", out[2].Entitlement.FeatureID)
}

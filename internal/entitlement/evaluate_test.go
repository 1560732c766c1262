package entitlement

import (
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
	"gorm.io/datatypes"
)

var testNode, _ = snowflake.NewNode(1)

func metered(id string) featuredomain.Feature {
	return featuredomain.Feature{
		InternalID: testNode.Generate(),
		ID:         id,
		Type:       featuredomain.FeatureTypeMetered,
	}
}

func creditSystem(t *testing.T, id, meteredFeatureID string, creditCost float64) featuredomain.Feature {
	t.Helper()
	payload, err := json.Marshal(featuredomain.CreditConfig{
		Schema: []featuredomain.CreditSchemaItem{
			{MeteredFeatureID: meteredFeatureID, CreditCost: creditCost},
		},
	})
	require.NoError(t, err)
	return featuredomain.Feature{
		InternalID: testNode.Generate(),
		ID:         id,
		Type:       featuredomain.FeatureTypeCreditSystem,
		Config:     datatypes.JSON(payload),
	}
}

func grant(featureID string, balance float64) customerdomain.CustomerEntitlement {
	b := balance
	return customerdomain.CustomerEntitlement{
		ID:        testNode.Generate(),
		FeatureID: featureID,
		Balance:   &b,
	}
}

func entityGrant(t *testing.T, featureID string, balances map[string]float64) customerdomain.CustomerEntitlement {
	t.Helper()
	entities := make(map[string]customerdomain.EntityBalance, len(balances))
	for id, b := range balances {
		entities[id] = customerdomain.EntityBalance{Balance: b}
	}
	payload, err := json.Marshal(entities)
	require.NoError(t, err)
	return customerdomain.CustomerEntitlement{
		ID:        testNode.Generate(),
		FeatureID: featureID,
		Entities:  datatypes.JSON(payload),
	}
}

func aggregated(ents ...customerdomain.CustomerEntitlement) []Aggregated {
	product := &customerdomain.CustomerProduct{
		ID:     testNode.Generate(),
		Status: customerdomain.StatusActive,
	}
	out := make([]Aggregated, 0, len(ents))
	for _, e := range ents {
		out = append(out, Aggregated{Entitlement: e, Product: product})
	}
	return out
}

func TestMeteredWithinBalance(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}
	ents := aggregated(grant("api-calls", 100))

	result, err := EvaluateMetered(res, ents, "", 30)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, result.Balances, 1)
	assert.Equal(t, "api-calls", result.Balances[0].FeatureID)
	assert.Equal(t, 30.0, *result.Balances[0].Required)
	assert.Equal(t, 100.0, *result.Balances[0].Balance)
}

func TestUnlimitedShortCircuits(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}
	ent := grant("api-calls", 0)
	ent.Unlimited = true
	ents := aggregated(ent)

	result, err := EvaluateMetered(res, ents, "", 1e12)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, result.Balances, 1)
	assert.True(t, result.Balances[0].Unlimited)
	assert.Nil(t, result.Balances[0].Balance)
	assert.Nil(t, result.Balances[0].Required)
}

func TestUsageAllowedShortCircuitsWithBalance(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}
	ent := grant("api-calls", 7)
	ent.UsageAllowed = true
	ents := aggregated(ent)

	result, err := EvaluateMetered(res, ents, "", 500)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, result.Balances, 1)
	assert.True(t, result.Balances[0].UsageAllowed)
	assert.False(t, result.Balances[0].Unlimited)
	require.NotNil(t, result.Balances[0].Balance)
	assert.Equal(t, 7.0, *result.Balances[0].Balance)
	assert.Nil(t, result.Balances[0].Required)
}

func TestCreditSystemFallbackWithRatio(t *testing.T) {
	feature := metered("messages")
	credits := creditSystem(t, "ai-credits", "messages", 10)
	res := featuredomain.Resolution{Feature: feature, CreditSystems: []featuredomain.Feature{credits}}

	// Zero direct balance, 500 credits at ratio 10: 30 messages cost
	// 300 credits.
	ents := aggregated(grant("messages", 0), grant("ai-credits", 500))

	result, err := EvaluateMetered(res, ents, "", 30)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, result.Balances, 2)
	assert.Equal(t, "messages", result.Balances[0].FeatureID)
	assert.Equal(t, "ai-credits", result.Balances[1].FeatureID)
	assert.Equal(t, 300.0, *result.Balances[1].Required)
	assert.Equal(t, 500.0, *result.Balances[1].Balance)
}

func TestDirectEntitlementPreferredOverCredits(t *testing.T) {
	feature := metered("messages")
	credits := creditSystem(t, "ai-credits", "messages", 10)
	res := featuredomain.Resolution{Feature: feature, CreditSystems: []featuredomain.Feature{credits}}

	ents := aggregated(grant("messages", 50), grant("ai-credits", 500))

	result, err := EvaluateMetered(res, ents, "", 30)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, result.Balances, 1)
	assert.Equal(t, "messages", result.Balances[0].FeatureID)
}

func TestExhaustedChainReportsEveryCandidate(t *testing.T) {
	feature := metered("messages")
	credits := creditSystem(t, "ai-credits", "messages", 10)
	res := featuredomain.Resolution{Feature: feature, CreditSystems: []featuredomain.Feature{credits}}

	ents := aggregated(grant("messages", 5), grant("ai-credits", 40))

	result, err := EvaluateMetered(res, ents, "", 30)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	require.Len(t, result.Balances, 2)
	assert.Equal(t, 30.0, *result.Balances[0].Required)
	assert.Equal(t, 5.0, *result.Balances[0].Balance)
	assert.Equal(t, 300.0, *result.Balances[1].Required)
	assert.Equal(t, 40.0, *result.Balances[1].Balance)
}

func TestMissingEntityBalanceIsZero(t *testing.T) {
	feature := metered("seats")
	res := featuredomain.Resolution{Feature: feature}
	ents := aggregated(entityGrant(t, "seats", map[string]float64{"ent-1": 4}))

	result, err := EvaluateMetered(res, ents, "ent-2", 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	require.Len(t, result.Balances, 1)
	assert.Equal(t, 0.0, *result.Balances[0].Balance)
}

func TestUnscopedCheckSumsAllEntities(t *testing.T) {
	feature := metered("seats")
	res := featuredomain.Resolution{Feature: feature}
	ents := aggregated(entityGrant(t, "seats", map[string]float64{"ent-1": 4, "ent-2": 6}))

	result, err := EvaluateMetered(res, ents, "", 10)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10.0, *result.Balances[0].Balance)
}

func TestDoubleGrantSumsAcrossProducts(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}

	// Two active products each granting the same unscoped feature:
	// balances sum.
	productA := &customerdomain.CustomerProduct{ID: testNode.Generate(), Status: customerdomain.StatusActive}
	productB := &customerdomain.CustomerProduct{ID: testNode.Generate(), Status: customerdomain.StatusActive}
	ents := []Aggregated{
		{Entitlement: grant("api-calls", 40), Product: productA},
		{Entitlement: grant("api-calls", 70), Product: productB},
	}

	result, err := EvaluateMetered(res, ents, "", 100)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 110.0, *result.Balances[0].Balance)
}

func TestZeroQuantityAllowedWithZeroBalance(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}
	ents := aggregated(grant("api-calls", 0))

	result, err := EvaluateMetered(res, ents, "", 0)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestNoMatchingEntitlementDenied(t *testing.T) {
	feature := metered("api-calls")
	res := featuredomain.Resolution{Feature: feature}

	result, err := EvaluateMetered(res, nil, "", 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Empty(t, result.Balances)
}

func TestBooleanFeature(t *testing.T) {
	ents := aggregated(grant("sso", 0))
	assert.True(t, EvaluateBoolean("sso", ents))
	assert.False(t, EvaluateBoolean("audit-log", ents))
}

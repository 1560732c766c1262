package reconcile

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildUsageItemRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	for _, amount := range []float64{0, 0.004, 0.005, 1, 19.99, 48.333, 1234.567} {
		item := BuildUsageItem(amount, "seats usage", "usd", start, end, "cus_1", "prod_1")
		// Re-parsing the minor amount lands within one minor unit of
		// the original delta.
		assert.LessOrEqual(t, math.Abs(MajorAmount(item.Amount)-amount), 0.01, "amount %v", amount)
	}
}

func TestBuildUsageItemClampsNegative(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	item := BuildUsageItem(-42.5, "credit", "usd", start, end, "cus_1", "prod_1")
	assert.Equal(t, int64(0), item.Amount)
	assert.Equal(t, start.Unix(), item.Period.Start)
	assert.Equal(t, end.Unix(), item.Period.End)
}

func TestMinorUnitsRounding(t *testing.T) {
	// Sign survives: plan creates rely on negative corrections.
	assert.Equal(t, int64(-2000), MinorUnits(-20.0))
	assert.Equal(t, int64(4800), MinorUnits(48.0))
	assert.Equal(t, int64(0), MinorUnits(0.004))
	assert.Equal(t, int64(1), MinorUnits(0.005))
}

func TestCorrectionItemKeepsSign(t *testing.T) {
	item := correctionItem("cus_1", Create{
		Description: "unused time credit",
		Amount:      -2000,
		Currency:    "usd",
	})
	assert.Equal(t, "cus_1", item.CustomerID)
	assert.Equal(t, int64(-2000), item.Amount)
}

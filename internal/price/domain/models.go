// Package domain contains the pricing models attached to catalog products.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type BillingInterval string

var (
	Month      BillingInterval = "month"
	Quarter    BillingInterval = "quarter"
	SemiAnnual BillingInterval = "semi_annual"
	Year       BillingInterval = "year"
)

type BillingType string

var (
	OneOff           BillingType = "one_off"
	FixedCycle       BillingType = "fixed_cycle"
	UsageInAdvance   BillingType = "usage_in_advance"
	UsageInArrear    BillingType = "usage_in_arrear"
	InArrearProrated BillingType = "in_arrear_prorated"
)

type Price struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID      `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProductID         snowflake.ID      `json:"product_id" gorm:"column:product_id;not null;index"`
	Name              string            `json:"name,omitempty" gorm:"type:text"`
	FeatureID         *string           `json:"feature_id,omitempty" gorm:"type:text"`
	BillingInterval   BillingInterval   `json:"billing_interval" gorm:"type:text;not null"`
	BillingType       BillingType       `json:"billing_type" gorm:"type:text;not null"`
	UnitAmount        float64           `json:"unit_amount" gorm:"type:numeric;not null;default:0"`
	OverageUnitAmount float64           `json:"overage_unit_amount" gorm:"type:numeric;not null;default:0"`
	// IncludedUnits is the quantity covered by the base amount before
	// overage pricing applies.
	IncludedUnits       float64           `json:"included_units" gorm:"type:numeric;not null;default:0"`
	ProcessorPriceID    *string           `json:"processor_price_id,omitempty" gorm:"type:text"`
	ProcessorProductID  *string           `json:"processor_product_id,omitempty" gorm:"type:text"`
	Metadata            datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Price) TableName() string { return "prices" }

// ContinuousUse reports whether the price bills continuously in arrears
// with proration, the shape the reconciler corrects.
func (p *Price) ContinuousUse() bool {
	return p.BillingType == InArrearProrated
}

// Package domain contains the feature catalog models.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type FeatureType string

const (
	FeatureTypeBoolean      FeatureType = "boolean"
	FeatureTypeMetered      FeatureType = "metered"
	FeatureTypeCreditSystem FeatureType = "credit_system"
)

// CreditSchemaItem maps usage of one metered feature onto credit
// consumption: one unit of the metered feature costs CreditCost credits.
type CreditSchemaItem struct {
	MeteredFeatureID string  `json:"metered_feature_id"`
	CreditCost       float64 `json:"credit_cost"`
}

// CreditConfig is the config payload for credit-system features. The
// schema references metered features only, never other credit systems.
type CreditConfig struct {
	Schema []CreditSchemaItem `json:"schema"`
}

// MeteredConfig is the config payload for metered features.
type MeteredConfig struct {
	Filters []string `json:"filters,omitempty"`
}

// Feature is a catalog entry. ID is the caller-facing identifier,
// InternalID the storage key entitlements reference.
type Feature struct {
	InternalID snowflake.ID   `gorm:"column:internal_id;primaryKey"`
	OrgID      snowflake.ID   `gorm:"not null;index:ux_features_org_feature,unique,priority:1"`
	ID         string         `gorm:"column:id;type:text;not null;index:ux_features_org_feature,unique,priority:2"`
	Name       string         `gorm:"type:text;not null"`
	Type       FeatureType    `gorm:"column:feature_type;type:text;not null"`
	Config     datatypes.JSON `gorm:"type:jsonb"`
	Archived   bool           `gorm:"not null;default:false"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Feature) TableName() string { return "features" }

// CreditConfig decodes the credit-system schema. Returns the zero config
// for non-credit features.
func (f *Feature) CreditConfig() (CreditConfig, error) {
	var cfg CreditConfig
	if f.Type != FeatureTypeCreditSystem || len(f.Config) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(f.Config, &cfg); err != nil {
		return CreditConfig{}, err
	}
	return cfg, nil
}

// SchemaItemFor returns the conversion entry for the given metered
// feature, or nil when the schema does not reference it.
func (f *Feature) SchemaItemFor(meteredFeatureID string) *CreditSchemaItem {
	cfg, err := f.CreditConfig()
	if err != nil {
		return nil
	}
	for i := range cfg.Schema {
		if cfg.Schema[i].MeteredFeatureID == meteredFeatureID {
			return &cfg.Schema[i]
		}
	}
	return nil
}

// Package domain contains the customer, entity and subscription models
// the entitlement engine reads.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	"gorm.io/datatypes"
)

type Customer struct {
	InternalID  snowflake.ID      `gorm:"column:internal_id;primaryKey" json:"-"`
	OrgID       snowflake.ID      `gorm:"not null;index:ux_customers_org_customer,unique,priority:1" json:"organization_id"`
	ID          string            `gorm:"column:id;type:text;not null;index:ux_customers_org_customer,unique,priority:2" json:"id"`
	Name        string            `gorm:"type:text" json:"name,omitempty"`
	Email       string            `gorm:"type:text" json:"email,omitempty"`
	ProcessorID *string           `gorm:"type:text" json:"-"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Products []CustomerProduct `gorm:"foreignKey:CustomerInternalID;references:InternalID" json:"products,omitempty"`
}

func (Customer) TableName() string { return "customers" }

// Entity is a sub-scope under a customer, e.g. a seat or a project.
// Balances can be tracked per entity.
type Entity struct {
	InternalID         snowflake.ID `gorm:"column:internal_id;primaryKey" json:"-"`
	OrgID              snowflake.ID `gorm:"not null;index" json:"organization_id"`
	CustomerInternalID snowflake.ID `gorm:"not null;index:ux_entities_customer_entity,unique,priority:1" json:"-"`
	ID                 string       `gorm:"column:id;type:text;not null;index:ux_entities_customer_entity,unique,priority:2" json:"id"`
	Name               string       `gorm:"type:text" json:"name,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Entity) TableName() string { return "entities" }

type ProductStatus string

var (
	StatusActive    ProductStatus = "active"
	StatusTrialing  ProductStatus = "trialing"
	StatusPastDue   ProductStatus = "past_due"
	StatusScheduled ProductStatus = "scheduled"
	StatusExpired   ProductStatus = "expired"
)

// CustomerProduct is a customer's subscription to a product. It owns
// the entitlements and prices the check and reconcile paths read.
type CustomerProduct struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	CustomerInternalID snowflake.ID  `gorm:"not null;index" json:"-"`
	ProductID          snowflake.ID  `gorm:"not null;index" json:"product_id"`
	ProductName        string        `gorm:"type:text" json:"product_name,omitempty"`
	Status             ProductStatus `gorm:"type:text;not null" json:"status"`
	// InternalEntityID restricts the subscription to one entity. Nil
	// means customer-wide.
	InternalEntityID   *snowflake.ID `gorm:"index" json:"-"`
	SubscriptionID     *string       `gorm:"type:text" json:"-"`
	CurrentPeriodStart *time.Time    `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time    `json:"current_period_end,omitempty"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Entitlements []CustomerEntitlement `gorm:"foreignKey:CustomerProductID" json:"entitlements,omitempty"`
	Prices       []pricedomain.Price   `gorm:"foreignKey:ProductID;references:ProductID" json:"prices,omitempty"`
}

func (CustomerProduct) TableName() string { return "customer_products" }

// Counted reports whether the subscription contributes entitlements to
// a check. Past-due inclusion is an org-level setting.
func (cp *CustomerProduct) Counted(includePastDue bool) bool {
	switch cp.Status {
	case StatusActive, StatusTrialing:
		return true
	case StatusPastDue:
		return includePastDue
	default:
		return false
	}
}

// EntityBalance is the per-entity slice of an entitlement balance.
type EntityBalance struct {
	Balance    float64 `json:"balance"`
	Adjustment float64 `json:"adjustment"`
}

type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopePerEntity
)

// Scope is the explicit balance shape of an entitlement: a scalar
// customer-wide balance, or a map of per-entity balances. Never both.
type Scope struct {
	Kind     ScopeKind
	Balance  float64
	Entities map[string]EntityBalance
}

// CustomerEntitlement grants a feature allowance to a customer, owned
// by one CustomerProduct.
type CustomerEntitlement struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	CustomerProductID snowflake.ID   `gorm:"not null;index" json:"-"`
	FeatureInternalID snowflake.ID   `gorm:"not null;index" json:"-"`
	FeatureID         string         `gorm:"type:text;not null;index" json:"feature_id"`
	Balance           *float64       `gorm:"type:numeric" json:"balance,omitempty"`
	Unlimited         bool           `gorm:"not null;default:false" json:"unlimited"`
	UsageAllowed      bool           `gorm:"not null;default:false" json:"usage_allowed"`
	Entities          datatypes.JSON `gorm:"type:jsonb" json:"entities,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CustomerEntitlement) TableName() string { return "customer_entitlements" }

// Scope decodes the balance shape. An entitlement with a non-empty
// entities map is per-entity; otherwise it is global with the scalar
// balance (zero when null).
func (ce *CustomerEntitlement) Scope() (Scope, error) {
	if len(ce.Entities) > 0 {
		var entities map[string]EntityBalance
		if err := json.Unmarshal(ce.Entities, &entities); err != nil {
			return Scope{}, err
		}
		if len(entities) > 0 {
			return Scope{Kind: ScopePerEntity, Entities: entities}, nil
		}
	}

	var balance float64
	if ce.Balance != nil {
		balance = *ce.Balance
	}
	return Scope{Kind: ScopeGlobal, Balance: balance}, nil
}

// SetEntityBalance rewrites one entity's balance in place, creating the
// map entry when absent.
func (ce *CustomerEntitlement) SetEntityBalance(entityID string, balance float64) error {
	entities := map[string]EntityBalance{}
	if len(ce.Entities) > 0 {
		if err := json.Unmarshal(ce.Entities, &entities); err != nil {
			return err
		}
	}

	eb := entities[entityID]
	eb.Balance = balance
	entities[entityID] = eb

	payload, err := json.Marshal(entities)
	if err != nil {
		return err
	}
	ce.Entities = datatypes.JSON(payload)
	return nil
}

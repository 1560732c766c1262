// Package domain contains the catalog product models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	"github.com/usagegate/usagegate/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Product struct {
	InternalID snowflake.ID      `json:"-" gorm:"column:internal_id;primaryKey"`
	OrgID      snowflake.ID      `json:"organization_id" gorm:"not null;index:ux_products_org_product,unique,priority:1"`
	ID         string            `json:"id" gorm:"column:id;type:text;not null;index:ux_products_org_product,unique,priority:2"`
	Name       string            `json:"name" gorm:"type:text;not null"`
	Active     bool              `json:"active" gorm:"not null;default:true"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Prices       []pricedomain.Price  `json:"prices,omitempty" gorm:"foreignKey:ProductID;references:InternalID"`
	Entitlements []ProductEntitlement `json:"entitlements,omitempty" gorm:"foreignKey:ProductInternalID;references:InternalID"`
}

func (Product) TableName() string { return "products" }

// ProductEntitlement is the feature grant template a subscription
// copies into customer entitlements on attach.
type ProductEntitlement struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID `json:"organization_id" gorm:"not null;index"`
	ProductInternalID snowflake.ID `json:"-" gorm:"not null;index"`
	FeatureInternalID snowflake.ID `json:"-" gorm:"not null"`
	FeatureID         string       `json:"feature_id" gorm:"type:text;not null"`
	IncludedUnits     float64      `json:"included_units" gorm:"type:numeric;not null;default:0"`
	Unlimited         bool         `json:"unlimited" gorm:"not null;default:false"`
	UsageAllowed      bool         `json:"usage_allowed" gorm:"not null;default:false"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductEntitlement) TableName() string { return "product_entitlements" }

type ListRequest struct {
	SortBy  string `form:"sort_by"`
	OrderBy string `form:"order_by"`

	pagination.Pagination
}

type Service interface {
	// Get loads a product with prices and entitlement templates.
	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context, req ListRequest) ([]Product, *pagination.PageInfo, error)
}

type Repository interface {
	FindByProductID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, productID string) (*Product, error)
	FindAll(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListRequest) ([]Product, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProductID    = errors.New("invalid_product_id")
	ErrProductNotFound     = errors.New("product_not_found")
)

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Data is the loaded view of a customer the check path consumes:
// the customer with products, entitlements and prices, plus the
// resolved entity when the request is entity-scoped.
type Data struct {
	Customer Customer
	Entity   *Entity
}

type CreateRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Service interface {
	// GetOrCreate loads the customer with products, entitlements and
	// prices, creating an empty customer record on first sight. When
	// entityID is non-empty the entity must exist.
	GetOrCreate(ctx context.Context, customerID, entityID string) (*Data, error)
	Expire(ctx context.Context, customerID string, productID snowflake.ID) error
}

type Repository interface {
	FindByCustomerID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, customerID string) (*Customer, error)
	Create(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindEntity(ctx context.Context, db *gorm.DB, customerInternalID snowflake.ID, entityID string) (*Entity, error)
	CreateProduct(ctx context.Context, db *gorm.DB, product *CustomerProduct) error
	UpdateProduct(ctx context.Context, db *gorm.DB, product *CustomerProduct) error
	UpdateEntitlement(ctx context.Context, db *gorm.DB, ent *CustomerEntitlement) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCustomerID   = errors.New("invalid_customer_id")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrEntityNotFound      = errors.New("entity_not_found")
	ErrProductNotFound     = errors.New("product_not_found")
)

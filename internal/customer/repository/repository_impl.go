package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCustomerID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Preload("Products.Entitlements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Preload("Products.Prices").
		Where("org_id = ? AND id = ?", orgID, customerID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindEntity(ctx context.Context, db *gorm.DB, customerInternalID snowflake.ID, entityID string) (*domain.Entity, error) {
	var e domain.Entity
	err := db.WithContext(ctx).
		Where("customer_internal_id = ? AND id = ?", customerInternalID, entityID).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *repo) CreateProduct(ctx context.Context, db *gorm.DB, product *domain.CustomerProduct) error {
	return db.WithContext(ctx).Omit("Prices").Create(product).Error
}

func (r *repo) UpdateProduct(ctx context.Context, db *gorm.DB, product *domain.CustomerProduct) error {
	return db.WithContext(ctx).
		Model(&domain.CustomerProduct{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"status":     product.Status,
			"updated_at": product.UpdatedAt,
		}).Error
}

func (r *repo) UpdateEntitlement(ctx context.Context, db *gorm.DB, ent *domain.CustomerEntitlement) error {
	return db.WithContext(ctx).
		Model(&domain.CustomerEntitlement{}).
		Where("id = ?", ent.ID).
		Updates(map[string]any{
			"balance":    ent.Balance,
			"entities":   ent.Entities,
			"updated_at": ent.UpdatedAt,
		}).Error
}

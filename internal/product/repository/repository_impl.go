package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/product/domain"
	"github.com/usagegate/usagegate/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByProductID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, productID string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Preload("Prices").
		Preload("Entitlements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Where("org_id = ? AND id = ?", orgID, productID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

var sortableColumns = map[string]bool{
	"created_at": true,
	"id":         true,
	"name":       true,
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).
		Preload("Prices").
		Preload("Entitlements").
		Where("org_id = ?", orgID)

	sort := "created_at asc"
	if filter.SortBy != "" || filter.OrderBy != "" || filter.Requested() {
		sort = option.WithQuerySortBy(filter.SortBy, filter.OrderBy, sortableColumns)
	}
	stmt = option.WithSortBy(sort).Apply(stmt)

	if filter.Requested() {
		stmt = option.ApplyPagination(filter.Pagination).Apply(stmt)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

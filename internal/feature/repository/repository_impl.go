package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, feature *domain.Feature) error {
	return db.WithContext(ctx).Create(feature).Error
}

func (r *repo) FindByFeatureID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, featureID string) (*domain.Feature, error) {
	var f domain.Feature
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, featureID).
		First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

var sortableColumns = map[string]bool{
	"created_at": true,
	"id":         true,
	"name":       true,
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListRequest) ([]domain.Feature, error) {
	var items []domain.Feature
	stmt := db.WithContext(ctx).
		Model(&domain.Feature{}).
		Where("org_id = ?", orgID)

	if filter.Type != nil {
		stmt = option.ApplyOperator(option.Condition{
			Field: "feature_type", Operator: option.EQ, Value: *filter.Type,
		}).Apply(stmt)
	}
	if filter.Archived != nil {
		stmt = option.ApplyOperator(option.Condition{
			Field: "archived", Operator: option.EQ, Value: *filter.Archived,
		}).Apply(stmt)
	}

	// Catalog order: creation order decides credit-system fallback
	// order. Cursor pagination pages newest-first instead.
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

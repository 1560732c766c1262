// Package domain contains persistence models for organizations.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the tenant that owns the feature catalog and customers.
type Organization struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Slug            string       `gorm:"type:text;not null;uniqueIndex"`
	Name            string       `gorm:"type:text;not null"`
	DefaultCurrency string       `gorm:"type:text;not null;default:'usd'"`
	IncludePastDue  bool         `gorm:"not null;default:false"`
	ProcessorID     *string      `gorm:"type:text"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Currency returns the invoice currency, falling back when unset.
func (o Organization) Currency(fallback string) string {
	if o.DefaultCurrency != "" {
		return o.DefaultCurrency
	}
	return fallback
}

type Service interface {
	Get(ctx context.Context) (Organization, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("organization_not_found")
)

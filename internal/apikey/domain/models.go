// Package domain contains API key credentials scoped to an organization.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// APIKey stores one secret-key credential. The raw secret is shown once
// at creation and kept only as a bcrypt hash; Prefix is the lookup key.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"column:org_id;not null;index"`
	Name       string       `gorm:"type:text;not null"`
	Prefix     string       `gorm:"type:text;not null;uniqueIndex"`
	SecretHash string       `gorm:"column:secret_hash;type:text;not null"`
	IsActive   bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

type SecretResponse struct {
	Prefix string `json:"prefix"`
	APIKey string `json:"api_key"`
}

type Service interface {
	Create(ctx context.Context, name string) (*SecretResponse, error)
	// Verify checks a raw secret key and returns the owning org.
	Verify(ctx context.Context, rawKey string) (snowflake.ID, error)
	Revoke(ctx context.Context, prefix string) error
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByPrefix(ctx context.Context, db *gorm.DB, prefix string) (*APIKey, error)
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidKey          = errors.New("invalid_api_key")
	ErrKeyNotFound         = errors.New("api_key_not_found")
)

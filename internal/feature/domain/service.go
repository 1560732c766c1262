package domain

import (
	"context"
	"errors"
	"time"

	"github.com/usagegate/usagegate/pkg/db/pagination"
)

// Resolution is the result of looking up a feature together with the
// credit systems that draw down on it.
type Resolution struct {
	Feature Feature
	// CreditSystems holds every credit-system feature whose schema
	// references the resolved feature, in catalog order.
	CreditSystems []Feature
}

type ListRequest struct {
	Type     *FeatureType `form:"-"`
	Archived *bool        `form:"-"`
	SortBy   string       `form:"sort_by"`
	OrderBy  string       `form:"order_by"`

	pagination.Pagination
}

type CreateRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   FeatureType    `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

type Response struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      FeatureType    `json:"type"`
	Config    map[string]any `json:"config,omitempty"`
	Archived  bool           `json:"archived"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, *pagination.PageInfo, error)
	Resolve(ctx context.Context, featureID string) (Resolution, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_feature_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidType         = errors.New("invalid_feature_type")
	ErrInvalidSchema       = errors.New("invalid_credit_schema")
	ErrFeatureNotFound     = errors.New("feature_not_found")
)

package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"github.com/usagegate/usagegate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("feature.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	featureID := slug.Make(strings.TrimSpace(req.ID))
	if featureID == "" {
		return nil, domain.ErrInvalidID
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	featureType, err := normalizeFeatureType(req.Type)
	if err != nil {
		return nil, err
	}

	configJSON, err := encodeConfig(featureType, req.Config)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &domain.Feature{
		InternalID: s.genID.Generate(),
		OrgID:      orgID,
		ID:         featureID,
		Name:       name,
		Type:       featureType,
		Config:     configJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, s.db, record); err != nil {
		return nil, err
	}

	resp := s.toResponse(record)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, *pagination.PageInfo, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.List(ctx, s.db, orgID, req)
	if err != nil {
		return nil, nil, err
	}

	var info *pagination.PageInfo
	if req.Requested() {
		info, items = pageOf(items, req.PageSize)
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}
	return resp, info, nil
}

// pageOf trims the one-extra row the repository fetched and encodes the
// cursor of the last row kept.
func pageOf(items []domain.Feature, size int) (*pagination.PageInfo, []domain.Feature) {
	if size <= 0 {
		size = 10
	}

	ptrs := make([]*domain.Feature, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}

	info := pagination.BuildCursorPageInfo(ptrs, int32(size), func(f *domain.Feature) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        f.ID,
			CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if info.HasMore {
		items = items[:size]
	}
	return info, items
}

// Resolve looks up a feature and every credit system that draws down on
// it. One catalog read serves both.
func (s *Service) Resolve(ctx context.Context, featureID string) (domain.Resolution, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Resolution{}, domain.ErrInvalidOrganization
	}

	featureID = strings.TrimSpace(featureID)
	if featureID == "" {
		return domain.Resolution{}, domain.ErrInvalidID
	}

	features, err := s.repo.List(ctx, s.db, orgID, domain.ListRequest{})
	if err != nil {
		return domain.Resolution{}, err
	}

	var feature *domain.Feature
	creditSystems := make([]domain.Feature, 0)
	for i := range features {
		f := &features[i]
		if f.ID == featureID {
			feature = f
		}
		if f.Type == domain.FeatureTypeCreditSystem && f.SchemaItemFor(featureID) != nil {
			creditSystems = append(creditSystems, *f)
		}
	}

	if feature == nil {
		return domain.Resolution{}, domain.ErrFeatureNotFound
	}

	return domain.Resolution{
		Feature:       *feature,
		CreditSystems: creditSystems,
	}, nil
}

func normalizeFeatureType(t domain.FeatureType) (domain.FeatureType, error) {
	switch domain.FeatureType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case domain.FeatureTypeBoolean:
		return domain.FeatureTypeBoolean, nil
	case domain.FeatureTypeMetered:
		return domain.FeatureTypeMetered, nil
	case domain.FeatureTypeCreditSystem:
		return domain.FeatureTypeCreditSystem, nil
	default:
		return "", domain.ErrInvalidType
	}
}

func encodeConfig(featureType domain.FeatureType, raw map[string]any) (datatypes.JSON, error) {
	if raw == nil {
		return nil, nil
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	if featureType == domain.FeatureTypeCreditSystem {
		var cfg domain.CreditConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return nil, domain.ErrInvalidSchema
		}
		if len(cfg.Schema) == 0 {
			return nil, domain.ErrInvalidSchema
		}
		for _, item := range cfg.Schema {
			if strings.TrimSpace(item.MeteredFeatureID) == "" || item.CreditCost <= 0 {
				return nil, domain.ErrInvalidSchema
			}
		}
	}

	return datatypes.JSON(payload), nil
}

func (s *Service) toResponse(f *domain.Feature) domain.Response {
	var cfg map[string]any
	if len(f.Config) > 0 {
		if err := json.Unmarshal(f.Config, &cfg); err != nil {
			s.log.Warn("feature config decode failed", zap.String("feature_id", f.ID), zap.Error(err))
		}
	}

	return domain.Response{
		ID:        f.ID,
		Name:      f.Name,
		Type:      f.Type,
		Config:    cfg,
		Archived:  f.Archived,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

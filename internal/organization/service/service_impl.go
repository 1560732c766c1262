package service

import (
	"context"

	"github.com/usagegate/usagegate/internal/organization/domain"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"github.com/usagegate/usagegate/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo repository.Repository[domain.Organization]
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("organization.service"),
		repo: repository.ProvideStore[domain.Organization](p.DB),
	}
}

func (s *Service) Get(ctx context.Context) (domain.Organization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Organization{}, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindOne(ctx, &domain.Organization{ID: orgID})
	if err != nil {
		return domain.Organization{}, err
	}
	if org == nil {
		return domain.Organization{}, domain.ErrNotFound
	}

	return *org, nil
}

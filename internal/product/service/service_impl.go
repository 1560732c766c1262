package service

import (
	"context"
	"strings"
	"time"

	"github.com/usagegate/usagegate/internal/orgcontext"
	"github.com/usagegate/usagegate/internal/product/domain"
	"github.com/usagegate/usagegate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("product.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, productID string) (*domain.Product, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.ErrInvalidProductID
	}

	product, err := s.repo.FindByProductID(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Product, *pagination.PageInfo, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.FindAll(ctx, s.db, orgID, req)
	if err != nil {
		return nil, nil, err
	}

	var info *pagination.PageInfo
	if req.Requested() {
		info, items = pageOf(items, req.PageSize)
	}
	return items, info, nil
}

func pageOf(items []domain.Product, size int) (*pagination.PageInfo, []domain.Product) {
	if size <= 0 {
		size = 10
	}
	ptrs := make([]*domain.Product, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	info := pagination.BuildCursorPageInfo(ptrs, int32(size), func(p *domain.Product) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.InternalID.String(),
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
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

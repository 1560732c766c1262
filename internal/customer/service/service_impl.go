package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/clock"
	"github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"github.com/usagegate/usagegate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, customerID, entityID string) (*domain.Data, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomerID
	}

	customer, err := s.repo.FindByCustomerID(ctx, s.db, orgID, customerID)
	if err != nil {
		return nil, err
	}

	if customer == nil {
		customer, err = s.create(ctx, orgID, customerID)
		if err != nil {
			return nil, err
		}
	}

	data := &domain.Data{Customer: *customer}
	if entityID != "" {
		entity, err := s.repo.FindEntity(ctx, s.db, customer.InternalID, entityID)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, domain.ErrEntityNotFound
		}
		data.Entity = entity
	}

	return data, nil
}

func (s *Service) create(ctx context.Context, orgID snowflake.ID, customerID string) (*domain.Customer, error) {
	now := s.clock.Now().UTC()
	customer := &domain.Customer{
		InternalID: s.genID.Generate(),
		OrgID:      orgID,
		ID:         customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, s.db, customer); err != nil {
		// Concurrent first-sight creates race on the unique index.
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByCustomerID(ctx, s.db, orgID, customerID)
		}
		return nil, err
	}

	s.log.Info("customer created",
		zap.String("customer_id", customerID),
		zap.Int64("org_id", int64(orgID)),
	)
	return customer, nil
}

func (s *Service) Expire(ctx context.Context, customerID string, productID snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	customer, err := s.repo.FindByCustomerID(ctx, s.db, orgID, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrCustomerNotFound
	}

	var target *domain.CustomerProduct
	for i := range customer.Products {
		if customer.Products[i].ID == productID {
			target = &customer.Products[i]
			break
		}
	}
	if target == nil {
		return domain.ErrProductNotFound
	}

	target.Status = domain.StatusExpired
	target.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateProduct(ctx, s.db, target); err != nil {
		return err
	}

	s.log.Info("customer product expired",
		zap.String("customer_id", customerID),
		zap.Int64("product_id", int64(productID)),
	)
	return nil
}

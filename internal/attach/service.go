// Package attach implements product changes on a customer: swapping the
// active subscription's product and reconciling provider-side proration.
package attach

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/clock"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/orgcontext"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
	"github.com/usagegate/usagegate/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid_request")

type Request struct {
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	EntityID   string `json:"entity_id,omitempty"`
}

type Result struct {
	CustomerID string         `json:"customer_id"`
	ProductID  string         `json:"product_id"`
	Plan       reconcile.Plan `json:"-"`
	// Replaced is the id of the expired subscription, zero on a first
	// attach.
	Replaced snowflake.ID `json:"-"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	customers  customerdomain.Service
	custRepo   customerdomain.Repository
	products   productdomain.Service
	reconciler *reconcile.Service
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Customers  customerdomain.Service
	CustRepo   customerdomain.Repository
	Products   productdomain.Service
	Reconciler *reconcile.Service
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("attach.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		customers:  p.Customers,
		custRepo:   p.CustRepo,
		products:   p.Products,
		reconciler: p.Reconciler,
	}
}

// Attach replaces the customer's current product with the requested
// one. A scheduled replacement is cancelled first; when the current and
// new products bill on the same interval the provider's proration is
// reconciled.
func (s *Service) Attach(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.CustomerID) == "" || strings.TrimSpace(req.ProductID) == "" {
		return nil, ErrInvalidRequest
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, customerdomain.ErrInvalidOrganization
	}

	data, err := s.customers.GetOrCreate(ctx, req.CustomerID, req.EntityID)
	if err != nil {
		return nil, err
	}

	newProduct, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	current := currentProduct(&data.Customer, data.Entity)

	if scheduled := scheduledProduct(&data.Customer); scheduled != nil {
		if err := s.customers.Expire(ctx, req.CustomerID, scheduled.ID); err != nil {
			return nil, err
		}
		s.log.Info("scheduled replacement cancelled",
			zap.String("customer_id", req.CustomerID),
			zap.Int64("customer_product_id", int64(scheduled.ID)),
		)
	}

	result := &Result{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
	}

	if current != nil {
		if current.SubscriptionID != nil {
			processorID := ""
			if data.Customer.ProcessorID != nil {
				processorID = *data.Customer.ProcessorID
			}
			plan, err := s.reconciler.Reconcile(ctx, current, newProduct, processorID)
			if err != nil {
				// Reconciliation is best-effort: the product change
				// goes through even when the provider is unreachable.
				s.log.Error("reconciliation failed", zap.Error(err))
			}
			result.Plan = plan
		}

		if err := s.customers.Expire(ctx, req.CustomerID, current.ID); err != nil {
			return nil, err
		}
		result.Replaced = current.ID
	}

	if err := s.createSubscription(ctx, orgID, data, newProduct, current); err != nil {
		return nil, err
	}

	s.log.Info("product attached",
		zap.String("customer_id", req.CustomerID),
		zap.String("product_id", req.ProductID),
	)
	return result, nil
}

// createSubscription copies the product's entitlement templates into a
// new active CustomerProduct, carrying the subscription identity and
// period bounds over from the replaced one.
func (s *Service) createSubscription(ctx context.Context, orgID snowflake.ID, data *customerdomain.Data, product *productdomain.Product, replaced *customerdomain.CustomerProduct) error {
	now := s.clock.Now().UTC()

	cp := &customerdomain.CustomerProduct{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		CustomerInternalID: data.Customer.InternalID,
		ProductID:          product.InternalID,
		ProductName:        product.Name,
		Status:             customerdomain.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if data.Entity != nil {
		entityInternalID := data.Entity.InternalID
		cp.InternalEntityID = &entityInternalID
	}
	if replaced != nil {
		cp.SubscriptionID = replaced.SubscriptionID
		cp.CurrentPeriodStart = replaced.CurrentPeriodStart
		cp.CurrentPeriodEnd = replaced.CurrentPeriodEnd
	}

	for _, tpl := range product.Entitlements {
		balance := tpl.IncludedUnits
		ent := customerdomain.CustomerEntitlement{
			ID:                s.genID.Generate(),
			OrgID:             orgID,
			CustomerProductID: cp.ID,
			FeatureInternalID: tpl.FeatureInternalID,
			FeatureID:         tpl.FeatureID,
			Unlimited:         tpl.Unlimited,
			UsageAllowed:      tpl.UsageAllowed,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if !tpl.Unlimited {
			ent.Balance = &balance
		}
		cp.Entitlements = append(cp.Entitlements, ent)
	}

	return s.custRepo.CreateProduct(ctx, s.db, cp)
}

// currentProduct picks the customer's main subscription: the first
// counted product whose entity scope matches.
func currentProduct(customer *customerdomain.Customer, entity *customerdomain.Entity) *customerdomain.CustomerProduct {
	for i := range customer.Products {
		p := &customer.Products[i]
		if !p.Counted(true) {
			continue
		}
		if entity != nil && p.InternalEntityID != nil && *p.InternalEntityID != entity.InternalID {
			continue
		}
		return p
	}
	return nil
}

func scheduledProduct(customer *customerdomain.Customer) *customerdomain.CustomerProduct {
	for i := range customer.Products {
		if customer.Products[i].Status == customerdomain.StatusScheduled {
			return &customer.Products[i]
		}
	}
	return nil
}

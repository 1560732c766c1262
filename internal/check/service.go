// Package check orchestrates the feature check: resolve, aggregate,
// evaluate, and optionally record usage and preview billing impact.
package check

import (
	"context"
	"errors"
	"math"
	"strings"

	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/entitlement"
	"github.com/usagegate/usagegate/internal/events"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/internal/observability/metrics"
	orgdomain "github.com/usagegate/usagegate/internal/organization/domain"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidRequest = errors.New("invalid_request")

type Request struct {
	CustomerID       string   `json:"customer_id"`
	FeatureID        string   `json:"feature_id,omitempty"`
	ProductID        string   `json:"product_id,omitempty"`
	RequiredBalance  *float64 `json:"required_balance,omitempty"`
	RequiredQuantity *float64 `json:"required_quantity,omitempty"`
	EntityID         string   `json:"entity_id,omitempty"`
	SendEvent        bool     `json:"send_event,omitempty"`
	WithPreview      bool     `json:"with_preview,omitempty"`
}

// Preview describes the next-invoice impact of going over the balance.
type Preview struct {
	FeatureID string  `json:"feature_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

type Response struct {
	Allowed         bool                         `json:"allowed"`
	FeatureID       string                       `json:"feature_id,omitempty"`
	RequiredBalance *float64                     `json:"required_balance,omitempty"`
	Balance         *float64                     `json:"balance,omitempty"`
	Unlimited       *bool                        `json:"unlimited,omitempty"`
	Balances        []entitlement.FeatureBalance `json:"balances,omitempty"`
	Preview         *Preview                     `json:"preview,omitempty"`
}

type Service struct {
	log       *zap.Logger
	features  featuredomain.Service
	products  productdomain.Service
	customers customerdomain.Service
	orgs      orgdomain.Service
	events    *events.Service
	metrics   *metrics.Metrics
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Features  featuredomain.Service
	Products  productdomain.Service
	Customers customerdomain.Service
	Orgs      orgdomain.Service
	Events    *events.Service
	Metrics   *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:       p.Log.Named("check.service"),
		features:  p.Features,
		products:  p.Products,
		customers: p.Customers,
		orgs:      p.Orgs,
		events:    p.Events,
		metrics:   p.Metrics,
	}
}

func (s *Service) Check(ctx context.Context, req Request) (*Response, error) {
	quantity, err := validate(&req)
	if err != nil {
		return nil, err
	}

	if req.ProductID != "" {
		return s.checkProduct(ctx, req)
	}
	return s.checkFeature(ctx, req, quantity)
}

func validate(req *Request) (float64, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return 0, ErrInvalidRequest
	}
	hasFeature := strings.TrimSpace(req.FeatureID) != ""
	hasProduct := strings.TrimSpace(req.ProductID) != ""
	if hasFeature == hasProduct {
		return 0, ErrInvalidRequest
	}

	// required_balance wins over required_quantity when both are sent.
	quantity := 1.0
	if req.RequiredBalance != nil {
		quantity = *req.RequiredBalance
	} else if req.RequiredQuantity != nil {
		quantity = *req.RequiredQuantity
	}
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0, ErrInvalidRequest
	}
	return quantity, nil
}

func (s *Service) checkFeature(ctx context.Context, req Request, quantity float64) (*Response, error) {
	// Organization and feature resolution have no ordering dependency.
	var (
		org orgdomain.Organization
		res featuredomain.Resolution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = s.orgs.Get(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		res, err = s.features.Resolve(gctx, req.FeatureID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := s.customers.GetOrCreate(ctx, req.CustomerID, req.EntityID)
	if err != nil {
		return nil, err
	}

	aggregated := entitlement.Aggregate(&data.Customer, org.IncludePastDue, data.Entity)

	if res.Feature.Type == featuredomain.FeatureTypeBoolean {
		allowed := entitlement.EvaluateBoolean(res.Feature.ID, aggregated)
		s.metrics.RecordCheck(ctx, string(res.Feature.Type), allowed)
		return &Response{Allowed: allowed}, nil
	}

	result, err := entitlement.EvaluateMetered(res, aggregated, req.EntityID, quantity)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCheck(ctx, string(res.Feature.Type), result.Allowed)

	resp := s.shape(result, req.FeatureID)

	if req.WithPreview {
		resp.Preview = s.preview(ctx, &org, data, req.FeatureID, quantity)
	}

	if req.SendEvent && result.Allowed && quantity > 0 {
		// Fire-and-forget: the allow decision never waits on the
		// deduction.
		go s.recordUsage(context.WithoutCancel(ctx), req, quantity)
	}

	return resp, nil
}

func (s *Service) shape(result entitlement.Result, requestedFeatureID string) *Response {
	resp := &Response{
		Allowed:   result.Allowed,
		FeatureID: requestedFeatureID,
	}

	if len(result.Balances) == 0 {
		return resp
	}

	if result.Allowed {
		matched := result.Balances[len(result.Balances)-1]
		resp.FeatureID = matched.FeatureID
		resp.RequiredBalance = matched.Required
		resp.Balance = matched.Balance
		unlimited := matched.Unlimited
		resp.Unlimited = &unlimited
		return resp
	}

	// On denial every candidate's pair is surfaced for diagnostics.
	resp.Balances = result.Balances
	first := result.Balances[0]
	resp.RequiredBalance = first.Required
	resp.Balance = first.Balance
	unlimited := false
	resp.Unlimited = &unlimited
	return resp
}

func (s *Service) checkProduct(ctx context.Context, req Request) (*Response, error) {
	var (
		org     orgdomain.Organization
		product *productdomain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = s.orgs.Get(gctx)
		return err
	})
	g.Go(func() error {
		p, err := s.products.Get(gctx, req.ProductID)
		if err != nil {
			// An unknown product denies instead of erroring.
			if errors.Is(err, productdomain.ErrProductNotFound) {
				return nil
			}
			return err
		}
		product = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := s.customers.GetOrCreate(ctx, req.CustomerID, req.EntityID)
	if err != nil {
		return nil, err
	}

	if product != nil {
		// Attachments reference the product's internal id, never the
		// public id or display name.
		for i := range data.Customer.Products {
			cp := &data.Customer.Products[i]
			if cp.ProductID == product.InternalID && cp.Counted(org.IncludePastDue) {
				s.metrics.RecordCheck(ctx, "product", true)
				return &Response{Allowed: true}, nil
			}
		}
	}

	s.metrics.RecordCheck(ctx, "product", false)
	return &Response{Allowed: false}, nil
}

// preview computes the overage cost the next invoice would carry if the
// request went through anyway. Best-effort: any failure degrades to no
// preview.
func (s *Service) preview(ctx context.Context, org *orgdomain.Organization, data *customerdomain.Data, featureID string, quantity float64) *Preview {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordPreviewFailure(ctx)
			s.log.Warn("preview computation panicked", zap.Any("cause", r))
		}
	}()

	for i := range data.Customer.Products {
		p := &data.Customer.Products[i]
		if !p.Counted(org.IncludePastDue) {
			continue
		}
		for j := range p.Prices {
			price := &p.Prices[j]
			if price.FeatureID == nil || *price.FeatureID != featureID {
				continue
			}
			if price.OverageUnitAmount <= 0 {
				continue
			}
			return &Preview{
				FeatureID: featureID,
				Amount:    quantity * price.OverageUnitAmount,
				Currency:  org.Currency("usd"),
			}
		}
	}

	return nil
}

func (s *Service) recordUsage(ctx context.Context, req Request, quantity float64) {
	_, err := s.events.Ingest(ctx, events.IngestRequest{
		CustomerID: req.CustomerID,
		FeatureID:  req.FeatureID,
		EntityID:   req.EntityID,
		Quantity:   &quantity,
	})
	if err != nil {
		s.log.Warn("usage event record failed",
			zap.String("customer_id", req.CustomerID),
			zap.String("feature_id", req.FeatureID),
			zap.Error(err),
		)
	}
}

package events

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/usagegate/usagegate/internal/clock"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/entitlement"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/internal/observability/metrics"
	orgdomain "github.com/usagegate/usagegate/internal/organization/domain"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid_request")

type IngestRequest struct {
	CustomerID string   `json:"customer_id"`
	FeatureID  string   `json:"feature_id"`
	EntityID   string   `json:"entity_id,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	features  featuredomain.Service
	customers customerdomain.Service
	custRepo  customerdomain.Repository
	orgs      orgdomain.Service
	recorder  *StreamRecorder
	metrics   *metrics.Metrics
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Features  featuredomain.Service
	Customers customerdomain.Service
	CustRepo  customerdomain.Repository
	Orgs      orgdomain.Service
	Recorder  *StreamRecorder
	Metrics   *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("events.service"),
		clock:     p.Clock,
		features:  p.Features,
		customers: p.Customers,
		custRepo:  p.CustRepo,
		orgs:      p.Orgs,
		recorder:  p.Recorder,
		metrics:   p.Metrics,
	}
}

// Ingest validates the event, deducts balances synchronously and hands
// the event to the analytics stream.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Event, error) {
	if strings.TrimSpace(req.CustomerID) == "" || strings.TrimSpace(req.FeatureID) == "" {
		return nil, ErrInvalidRequest
	}

	quantity := 1.0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, ErrInvalidRequest
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, customerdomain.ErrInvalidOrganization
	}

	res, err := s.features.Resolve(ctx, req.FeatureID)
	if err != nil {
		return nil, err
	}

	data, err := s.customers.GetOrCreate(ctx, req.CustomerID, req.EntityID)
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx)
	if err != nil {
		return nil, err
	}

	aggregated := entitlement.Aggregate(&data.Customer, org.IncludePastDue, data.Entity)
	if quantity > 0 {
		if err := s.deduct(ctx, res, aggregated, req.EntityID, quantity); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	ev := &Event{
		ID:         ulid.Make().String(),
		OrgID:      orgID,
		CustomerID: req.CustomerID,
		FeatureID:  req.FeatureID,
		EntityID:   req.EntityID,
		Quantity:   quantity,
		Timestamp:  now,
	}

	go s.recorder.Record(context.WithoutCancel(ctx), *ev)
	s.metrics.RecordUsageEvent(ctx, req.FeatureID)

	return ev, nil
}

// deduct consumes the event quantity from the candidate chain: the
// direct feature first, then credit systems at their conversion cost.
// The candidate that can fully cover the converted quantity pays;
// otherwise the first candidate holding a grant pays and may go
// negative.
func (s *Service) deduct(ctx context.Context, res featuredomain.Resolution, aggregated []entitlement.Aggregated, entityID string, quantity float64) error {
	candidates := make([]featuredomain.Feature, 0, 1+len(res.CreditSystems))
	candidates = append(candidates, res.Feature)
	candidates = append(candidates, res.CreditSystems...)

	type target struct {
		ents     []*customerdomain.CustomerEntitlement
		required float64
	}
	var fallback *target

	for i := range candidates {
		f := &candidates[i]

		required := quantity
		if f.Type == featuredomain.FeatureTypeCreditSystem && f.ID != res.Feature.ID {
			item := f.SchemaItemFor(res.Feature.ID)
			if item == nil {
				continue
			}
			required = quantity * item.CreditCost
		}

		var matching []*customerdomain.CustomerEntitlement
		var total float64
		for j := range aggregated {
			ent := &aggregated[j].Entitlement
			if ent.FeatureID != f.ID {
				continue
			}
			if ent.Unlimited {
				// Unlimited pools absorb usage without bookkeeping.
				return nil
			}
			matching = append(matching, ent)
			total += entityBalance(ent, entityID)
		}
		if len(matching) == 0 {
			continue
		}
		if fallback == nil {
			fallback = &target{ents: matching, required: required}
		}
		if total >= required {
			return s.apply(ctx, matching, entityID, required)
		}
	}

	if fallback == nil {
		return nil
	}
	return s.apply(ctx, fallback.ents, entityID, fallback.required)
}

// apply spreads the deduction across entitlements in aggregation order.
// Only the last one may go negative.
func (s *Service) apply(ctx context.Context, ents []*customerdomain.CustomerEntitlement, entityID string, amount float64) error {
	now := s.clock.Now().UTC()
	remaining := amount

	for i, ent := range ents {
		available := entityBalance(ent, entityID)
		take := remaining
		if i < len(ents)-1 {
			take = math.Min(remaining, math.Max(available, 0))
		}
		if take == 0 {
			continue
		}

		if err := s.subtract(ent, entityID, take); err != nil {
			return err
		}
		ent.UpdatedAt = now
		if err := s.custRepo.UpdateEntitlement(ctx, s.db, ent); err != nil {
			return err
		}

		remaining -= take
		if remaining <= 0 {
			return nil
		}
	}
	return nil
}

func (s *Service) subtract(ent *customerdomain.CustomerEntitlement, entityID string, amount float64) error {
	scope, err := ent.Scope()
	if err != nil {
		return err
	}

	if scope.Kind == customerdomain.ScopePerEntity {
		if entityID != "" {
			return ent.SetEntityBalance(entityID, scope.Entities[entityID].Balance-amount)
		}
		// Unscoped usage on a per-entity grant drains entities in key
		// order so the outcome is deterministic.
		keys := make([]string, 0, len(scope.Entities))
		for k := range scope.Entities {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		remaining := amount
		for i, k := range keys {
			eb := scope.Entities[k]
			take := remaining
			if i < len(keys)-1 {
				take = math.Min(remaining, math.Max(eb.Balance, 0))
			}
			if take == 0 {
				continue
			}
			if err := ent.SetEntityBalance(k, eb.Balance-take); err != nil {
				return err
			}
			remaining -= take
			if remaining <= 0 {
				break
			}
		}
		return nil
	}

	balance := scope.Balance - amount
	ent.Balance = &balance
	return nil
}

func entityBalance(ent *customerdomain.CustomerEntitlement, entityID string) float64 {
	scope, err := ent.Scope()
	if err != nil {
		return 0
	}
	if scope.Kind == customerdomain.ScopePerEntity {
		if entityID != "" {
			return scope.Entities[entityID].Balance
		}
		var total float64
		for _, eb := range scope.Entities {
			total += eb.Balance
		}
		return total
	}
	return scope.Balance
}

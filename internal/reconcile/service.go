package reconcile

import (
	"context"

	"github.com/usagegate/usagegate/internal/billing"
	"github.com/usagegate/usagegate/internal/billing/provider"
	"github.com/usagegate/usagegate/internal/clock"
	"github.com/usagegate/usagegate/internal/config"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/observability/metrics"
	orgdomain "github.com/usagegate/usagegate/internal/organization/domain"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultProvider = "stripe"

type Service struct {
	log      *zap.Logger
	registry *billing.Registry
	holder   *config.BillingConfigHolder
	clock    clock.Clock
	metrics  *metrics.Metrics
	orgs     orgdomain.Service
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Registry *billing.Registry
	Holder   *config.BillingConfigHolder
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Orgs     orgdomain.Service
}

func New(p Params) *Service {
	return &Service{
		log:      p.Log.Named("reconcile.service"),
		registry: p.Registry,
		holder:   p.Holder,
		clock:    p.Clock,
		metrics:  p.Metrics,
		orgs:     p.Orgs,
	}
}

// Reconcile computes and applies the correction for replacing current
// with newProduct on an active subscription. Item-level provider
// failures are logged and skipped; the plan is returned either way.
func (s *Service) Reconcile(ctx context.Context, current *customerdomain.CustomerProduct, newProduct *productdomain.Product, processorCustomerID string) (Plan, error) {
	empty := Plan{OldItems: []Item{}, NewItems: []Item{}}

	billingCfg := s.holder.Get()
	if !billingCfg.ProrationEnabled {
		return empty, nil
	}
	if current.SubscriptionID == nil || *current.SubscriptionID == "" {
		return empty, nil
	}

	org, err := s.orgs.Get(ctx)
	if err != nil {
		return empty, err
	}

	prov, err := s.registry.Get(defaultProvider)
	if err != nil {
		return empty, err
	}

	lines, err := prov.ListUpcomingLines(ctx, *current.SubscriptionID)
	s.metrics.RecordProviderCall(ctx, prov.Name(), "list_upcoming_lines", err != nil)
	if err != nil {
		return empty, err
	}

	plan := BuildPlan(PlanInput{
		Now:      s.clock.Now(),
		Currency: org.Currency(billingCfg.FallbackCurrency),
		Current:  current,
		New:      newProduct,
		Lines:    lines,
		Interval: subscriptionInterval(current.Prices),
	})

	s.Execute(ctx, prov, plan, processorCustomerID)
	return plan, nil
}

// Execute applies a plan: deletions first, then creations, strictly in
// order. Each creation's description depends on the state left by the
// preceding deletion, so nothing here runs concurrently.
func (s *Service) Execute(ctx context.Context, prov provider.Provider, plan Plan, processorCustomerID string) {
	for _, itemID := range plan.Deletes {
		err := prov.DeleteInvoiceItem(ctx, itemID)
		s.metrics.RecordProviderCall(ctx, prov.Name(), "delete_invoice_item", err != nil)
		if err != nil {
			s.log.Error("proration line delete failed",
				zap.String("invoice_item_id", itemID),
				zap.Error(err),
			)
			continue
		}
		s.metrics.RecordReconcileItem(ctx, "delete")
	}

	for _, create := range plan.Creates {
		_, err := prov.CreateInvoiceItem(ctx, correctionItem(processorCustomerID, create))
		s.metrics.RecordProviderCall(ctx, prov.Name(), "create_invoice_item", err != nil)
		if err != nil {
			s.log.Error("invoice item create failed",
				zap.String("description", create.Description),
				zap.Int64("amount", create.Amount),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("invoice item created",
			zap.String("description", create.Description),
			zap.Int64("amount", create.Amount),
		)
		s.metrics.RecordReconcileItem(ctx, "create")
	}
}

func subscriptionInterval(prices []pricedomain.Price) pricedomain.BillingInterval {
	for i := range prices {
		if prices[i].BillingType != pricedomain.OneOff {
			return prices[i].BillingInterval
		}
	}
	return ""
}

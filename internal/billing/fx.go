package billing

import (
	"github.com/usagegate/usagegate/internal/billing/provider"
	"github.com/usagegate/usagegate/internal/billing/stripe"
	"github.com/usagegate/usagegate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Registry resolves billing providers by name.
type Registry struct {
	providers map[string]provider.Provider
}

func NewRegistry(cfg config.Config, log *zap.Logger) (*Registry, error) {
	r := &Registry{providers: make(map[string]provider.Provider)}

	if cfg.StripeSecretKey != "" {
		client, err := stripe.New(cfg.StripeSecretKey, cfg.StripeAPIBase)
		if err != nil {
			return nil, err
		}
		r.providers[client.Name()] = client
	} else {
		log.Warn("no stripe secret key configured, reconciliation disabled")
	}

	return r, nil
}

func (r *Registry) Get(name string) (provider.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, provider.ErrProviderNotFound
	}
	return p, nil
}

var Module = fx.Module("billing.provider",
	fx.Provide(NewRegistry),
)

package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries reconciliation tunables that operators adjust
// without redeploying: the fallback currency for provider invoice items
// and the proration toggle. Past-due handling is per-org, not global.
type BillingConfig struct {
	FallbackCurrency string `mapstructure:"fallbackCurrency"`
	ProrationEnabled bool   `mapstructure:"prorationEnabled"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		FallbackCurrency: "usd",
		ProrationEnabled: true,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/usagegate/config")
	v.AddConfigPath("/etc/usagegate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("USAGEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.fallbackCurrency", defaults.FallbackCurrency)
	v.SetDefault("billing.prorationEnabled", defaults.ProrationEnabled)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.FallbackCurrency) == "" {
		return errors.New("billing.fallbackCurrency cannot be empty")
	}
	if len(cfg.FallbackCurrency) != 3 {
		return errors.New("billing.fallbackCurrency must be a 3-letter ISO code")
	}
	return nil
}

package events

import (
	"github.com/redis/go-redis/v9"
	"github.com/usagegate/usagegate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideRecorder(cfg config.Config, log *zap.Logger) *StreamRecorder {
	var rdb *redis.Client
	if cfg.AnalyticsEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return NewStreamRecorder(rdb, log, cfg.AnalyticsEnabled)
}

var Module = fx.Module("events.service",
	fx.Provide(
		provideRecorder,
		New,
	),
)

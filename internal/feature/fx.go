package feature

import (
	"github.com/usagegate/usagegate/internal/feature/repository"
	"github.com/usagegate/usagegate/internal/feature/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feature.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

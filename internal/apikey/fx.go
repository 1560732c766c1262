package apikey

import (
	"github.com/usagegate/usagegate/internal/apikey/repository"
	"github.com/usagegate/usagegate/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

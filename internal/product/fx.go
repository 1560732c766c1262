package product

import (
	"github.com/usagegate/usagegate/internal/product/repository"
	"github.com/usagegate/usagegate/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

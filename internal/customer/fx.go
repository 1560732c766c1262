package customer

import (
	"github.com/usagegate/usagegate/internal/customer/repository"
	"github.com/usagegate/usagegate/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

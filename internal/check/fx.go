package check

import "go.uber.org/fx"

var Module = fx.Module("check.service",
	fx.Provide(New),
)

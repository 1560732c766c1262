package attach

import "go.uber.org/fx"

var Module = fx.Module("attach.service",
	fx.Provide(New),
)

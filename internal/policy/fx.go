package policy

import (
	"github.com/servifield/servifield/internal/policy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("policy",
	fx.Provide(service.NewService),
)

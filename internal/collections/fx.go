package collections

import (
	"github.com/servifield/servifield/internal/collections/service"
	"go.uber.org/fx"
)

var Module = fx.Module("collections",
	fx.Provide(service.NewService),
)

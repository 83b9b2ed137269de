package recurring

import (
	"github.com/servifield/servifield/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring",
	fx.Provide(service.NewService),
)

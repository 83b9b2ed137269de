package ledger

import (
	"github.com/servifield/servifield/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(service.NewService),
)

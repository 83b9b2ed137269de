package payment

import (
	"github.com/servifield/servifield/internal/payment/repository"
	"github.com/servifield/servifield/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

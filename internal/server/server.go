package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	collectionsdomain "github.com/servifield/servifield/internal/collections/domain"
	"github.com/servifield/servifield/internal/config"
	ledgerdomain "github.com/servifield/servifield/internal/ledger/domain"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	paymentdomain "github.com/servifield/servifield/internal/payment/domain"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	recurringdomain "github.com/servifield/servifield/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	ledgerSvc      ledgerdomain.Service
	paymentSvc     paymentdomain.Service
	recurringSvc   recurringdomain.Service
	policySvc      policydomain.Service
	collectionsSvc collectionsdomain.Service
	orderSvc       orderdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	LedgerSvc      ledgerdomain.Service
	PaymentSvc     paymentdomain.Service
	RecurringSvc   recurringdomain.Service
	PolicySvc      policydomain.Service
	CollectionsSvc collectionsdomain.Service
	OrderSvc       orderdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("server"),
		ledgerSvc:      p.LedgerSvc,
		paymentSvc:     p.PaymentSvc,
		recurringSvc:   p.RecurringSvc,
		policySvc:      p.PolicySvc,
		collectionsSvc: p.CollectionsSvc,
		orderSvc:       p.OrderSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/orders/:id/balance", s.GetOrderBalance)
	v1.GET("/orders/:id/cashback", s.GetOrderCashback)
	v1.POST("/orders/:id/reverse-payments", s.ReverseOrderPayments)
	v1.POST("/incomes/:id/reverse", s.ReverseIncome)
	v1.POST("/jobs/run", s.RunJob)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/docs"
	"github.com/fatflowers/partypay/internal/app/api/handlers"
	mw "github.com/fatflowers/partypay/internal/app/api/middleware"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/internal/app/service/statistics"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/app/service/webhook"
	"github.com/fatflowers/partypay/internal/platform/redis"
	cfgpkg "github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/metrics"
	"github.com/fatflowers/partypay/pkg/types"
)

type routeParams struct {
	fx.In

	Log        *zap.SugaredLogger
	Config     *cfgpkg.Config
	Payments   *payment.Service
	Store      *transaction.Store
	Fees       *fees.Service
	Providers  *provider.Service
	Statistics *statistics.Service
	Webhooks   *webhook.Handler
	Redis      *redis.Client `optional:"true"`
	Registerer prometheus.Registerer
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, p routeParams) error {
	if err := handlers.RegisterValidators(); err != nil {
		return err
	}
	log, cfg := p.Log, p.Config

	if cfg.MetricsAddr != "" {
		metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ListenAddress: cfg.MetricsAddr,
			Registerer:    p.Registerer,
			Logger:        log,
		}).Use(r)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterWebhookRoutes(api.Group("/webhooks"), p.Webhooks, log)

	// a nil *redis.Client must not become a non-nil interface
	var idem redis.IdempotencyStore
	if p.Redis != nil {
		idem = p.Redis
	}
	authed := api.Group("")
	authed.Use(mw.AuthMiddleware(cfg.Auth.JWTSecret, log), mw.Idempotency(idem, log))

	handlers.RegisterPaymentRoutes(
		authed.Group("/payments", mw.RequireRole(types.UserRoleClient, types.UserRoleAdmin)), p.Payments)
	handlers.RegisterTransactionRoutes(authed.Group("/transactions"), p.Payments)
	handlers.RegisterProviderRoutes(
		authed.Group("/providers", mw.RequireRole(types.UserRoleProvider)), p.Providers)
	handlers.RegisterAdminRoutes(authed.Group("/admin", mw.RequireRole(types.UserRoleAdmin)), handlers.AdminDeps{
		Payments:     p.Payments,
		Fees:         p.Fees,
		Transactions: p.Store,
		Providers:    p.Providers,
		Statistics:   p.Statistics,
	})
	return nil
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server error", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

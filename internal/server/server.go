package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
	"github.com/nockworks/revenue-engine/internal/authorization"
	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	bridgedomain "github.com/nockworks/revenue-engine/internal/bridge/domain"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
	"github.com/nockworks/revenue-engine/internal/observability"
	obsmiddleware "github.com/nockworks/revenue-engine/internal/observability/logger"
	obstracing "github.com/nockworks/revenue-engine/internal/observability/tracing"
	"github.com/nockworks/revenue-engine/internal/optimizer"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	clock  clock.Clock

	revenueSvc      revenuedomain.Service
	subscriptionSvc subscriptiondomain.Service
	billingSvc      billingdomain.Service
	analyticsSvc    analyticsdomain.Service
	bridgeSvc       bridgedomain.Service
	enterpriseSvc   enterprisedomain.Service
	authzSvc        authorization.Service
	processor       paymentdomain.Processor
	monitor         *optimizer.Monitor
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock

	RevenueSvc      revenuedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	BillingSvc      billingdomain.Service
	AnalyticsSvc    analyticsdomain.Service
	BridgeSvc       bridgedomain.Service
	EnterpriseSvc   enterprisedomain.Service
	AuthzSvc        authorization.Service
	Processor       paymentdomain.Processor
	Monitor         *optimizer.Monitor `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		log:    p.Log.Named("http.server"),
		clock:  p.Clock,

		revenueSvc:      p.RevenueSvc,
		subscriptionSvc: p.SubscriptionSvc,
		billingSvc:      p.BillingSvc,
		analyticsSvc:    p.AnalyticsSvc,
		bridgeSvc:       p.BridgeSvc,
		enterpriseSvc:   p.EnterpriseSvc,
		authzSvc:        p.AuthzSvc,
		processor:       p.Processor,
		monitor:         p.Monitor,
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Revenue --------
	api.GET("/revenue/dashboard", s.GetRevenueDashboard)
	api.GET("/revenue/analytics", s.GetRevenueAnalytics)
	api.GET("/revenue/progress", s.GetRevenueProgress)
	api.GET("/revenue/forecast", s.GetRevenueForecast)
	api.GET("/revenue/streams", s.ListRevenueStreams)
	api.POST("/revenue/streams", s.RecordRevenueStream)

	// -------- Subscriptions --------
	api.POST("/subscriptions", s.CreateSubscription)
	api.GET("/subscriptions", s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/upgrade", s.UpgradeSubscription)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	api.GET("/subscriptions/analytics", s.GetSubscriptionAnalytics)

	// -------- Billing --------
	api.POST("/billing/invoices", s.CreateInvoice)
	api.GET("/billing/invoices", s.ListInvoices)
	api.GET("/billing/invoices/:id", s.GetInvoiceByID)
	api.GET("/billing/invoices/:id/pdf", s.RenderInvoicePDF)
	api.POST("/billing/payments", s.ProcessPayment)
	api.GET("/billing/payments/:id", s.GetPaymentByID)
	api.GET("/billing/analytics", s.GetBillingAnalytics)

	// -------- Payment Webhooks --------
	api.POST("/billing/webhooks/:provider", s.HandlePaymentWebhook)

	// -------- Analytics metering --------
	api.POST("/analytics/subscriptions", s.CreateAnalyticsSubscription)
	api.GET("/analytics/subscriptions/:user_id", s.GetAnalyticsSubscription)
	api.POST("/analytics/usage", s.APIKeyRequired(), s.TrackAnalyticsUsage)
	api.GET("/analytics/usage/:user_id/hourly", s.GetHourlyAPIUsage)

	// -------- Bridge --------
	api.POST("/bridge/transactions", s.ProcessBridgeTransaction)
	api.GET("/bridge/transactions/:hash", s.GetBridgeTransaction)
	api.POST("/bridge/transactions/:hash/confirm", s.ConfirmBridgeTransaction)
	api.GET("/bridge/analytics", s.GetBridgeAnalytics)
	api.POST("/bridge/liquidity", s.AddBridgeLiquidity)

	// -------- Enterprise --------
	api.POST("/enterprise/contracts", s.CreateEnterpriseContract)
	api.GET("/enterprise/contracts", s.ListEnterpriseContracts)
	api.GET("/enterprise/contracts/:id", s.GetEnterpriseContract)
	api.PATCH("/enterprise/contracts/:id/status", s.UpdateEnterpriseContractStatus)
	api.POST("/enterprise/otc", s.ProcessOTCOrder)
	api.POST("/enterprise/otc/:id/execute", s.ExecuteOTCOrder)
	api.POST("/enterprise/otc/:id/settle", s.SettleOTCOrder)
	api.POST("/enterprise/custody", s.SetupCustodyService)
	api.PATCH("/enterprise/custody/:id/aum", s.UpdateCustodyAUM)
	api.GET("/enterprise/revenue-events", s.ListEnterpriseRevenueEvents)
	api.GET("/enterprise/analytics", s.GetEnterpriseAnalytics)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/v1/admin")

	admin.POST("/billing/process",
		s.authorizeAction(authorization.ObjectBilling, authorization.ActionBillingProcess),
		s.ProcessBillingCyclesNow,
	)
	admin.POST("/optimize",
		s.authorizeAction(authorization.ObjectOptimizer, authorization.ActionOptimizerRun),
		s.RunOptimization,
	)
}

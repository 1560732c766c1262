package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/usagegate/usagegate/internal/apikey"
	apikeydomain "github.com/usagegate/usagegate/internal/apikey/domain"
	"github.com/usagegate/usagegate/internal/attach"
	"github.com/usagegate/usagegate/internal/billing"
	"github.com/usagegate/usagegate/internal/check"
	"github.com/usagegate/usagegate/internal/config"
	"github.com/usagegate/usagegate/internal/customer"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	"github.com/usagegate/usagegate/internal/events"
	"github.com/usagegate/usagegate/internal/feature"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/internal/observability"
	obsmetrics "github.com/usagegate/usagegate/internal/observability/metrics"
	obstracing "github.com/usagegate/usagegate/internal/observability/tracing"
	"github.com/usagegate/usagegate/internal/organization"
	"github.com/usagegate/usagegate/internal/product"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
	"github.com/usagegate/usagegate/internal/reconcile"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	billing.Module,
	organization.Module,
	feature.Module,
	customer.Module,
	product.Module,
	apikey.Module,
	events.Module,
	check.Module,
	attach.Module,
	reconcile.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if obsCfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
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
	engine      *gin.Engine
	cfg         config.Config
	apiKeySvc   apikeydomain.Service
	featureSvc  featuredomain.Service
	customerSvc customerdomain.Service
	productSvc  productdomain.Service
	checkSvc    *check.Service
	attachSvc   *attach.Service
	eventsSvc   *events.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	APIKeySvc   apikeydomain.Service
	FeatureSvc  featuredomain.Service
	CustomerSvc customerdomain.Service
	ProductSvc  productdomain.Service
	CheckSvc    *check.Service
	AttachSvc   *attach.Service
	EventsSvc   *events.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		apiKeySvc:   p.APIKeySvc,
		featureSvc:  p.FeatureSvc,
		customerSvc: p.CustomerSvc,
		productSvc:  p.ProductSvc,
		checkSvc:    p.CheckSvc,
		attachSvc:   p.AttachSvc,
		eventsSvc:   p.EventsSvc,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1", s.APIKeyRequired())

	v1.POST("/check", s.Check)
	v1.POST("/attach", s.Attach)
	v1.POST("/events", s.IngestEvent)

	v1.POST("/features", s.CreateFeature)
	v1.GET("/features", s.ListFeatures)

	v1.GET("/products", s.ListProducts)
	v1.GET("/products/:id", s.GetProductByID)

	v1.GET("/customers/:customer_id", s.GetCustomer)
	v1.POST("/customers/:customer_id/expire", s.ExpireProduct)

	v1.POST("/api_keys", s.CreateAPIKey)
	v1.DELETE("/api_keys/:prefix", s.RevokeAPIKey)
}

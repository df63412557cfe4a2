package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/http/middleware"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the services behind the routes. Reports and Redis may be nil.
type Deps struct {
	Tenants     repository.TenantsRepository
	Resolver    middleware.TenantResolver
	Leads       LeadAcceptor
	Provisioner Provisioner
	Reports     repository.CHLeadsRepository
	Redis       *redis.Client
	Log         *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(gommonLevel(cfg.Log.Level))

	origins := cfg.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(
		echoMid.Recover(),
		echoMid.Logger(),
		echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, middleware.HeaderPublicKey, middleware.HeaderAdminKey},
		}),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/api/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/ping", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]bool{"ok": true}) })

	// middlewares
	keyMW := middleware.PublicKeyMiddleware(d.Resolver)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		Burst:          cfg.RateLimit.Burst,
		KeyPrefix:      "rl:tenant:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	adminMW := middleware.AdminKeyMiddleware(cfg.Admin.APIKey)

	// routes
	api := e.Group("/api")
	api.POST("/leads", submitLeadHandler(d.Leads), keyMW, rlMW)
	api.GET("/oauth/start", oauthStartHandler(d.Provisioner))
	api.GET("/oauth/google/callback", oauthCallbackHandler(d.Provisioner, cfg.DashboardURL))

	api.POST("/tenants/create", createTenantHandler(d.Tenants), adminMW)
	api.PUT("/tenant/origins", updateOriginsHandler(d.Tenants), adminMW)
	api.GET("/admin/tenants/:id/leads", listLeadsHandler(d.Reports), adminMW)

	return &Server{e: e, log: d.Log}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func gommonLevel(level string) gommonlog.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return gommonlog.DEBUG
	case "warn":
		return gommonlog.WARN
	case "error":
		return gommonlog.ERROR
	default:
		return gommonlog.INFO
	}
}

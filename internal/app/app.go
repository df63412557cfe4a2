// Package app wires the core services shared by the serve and worker commands.
package app

import (
	"fmt"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/db"
	"github.com/jmehdipour/lead-gateway/internal/google"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/service/delivery"
	"github.com/jmehdipour/lead-gateway/internal/service/grants"
	"github.com/jmehdipour/lead-gateway/internal/service/provision"
	"github.com/jmehdipour/lead-gateway/internal/service/registry"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Core holds the repositories and services built on the MySQL pool.
type Core struct {
	Tenants     *repository.TenantsRepositoryImpl
	Credentials *repository.CredentialsRepositoryImpl
	Leads       *repository.LeadsRepositoryImpl
	Outbox      *repository.OutboxRepositoryImpl

	Registry    *registry.Registry
	Grants      *grants.Store
	OAuth       *google.OAuth
	Sheets      *google.Sheets
	Coordinator *delivery.Coordinator
	Provisioner *provision.Provisioner
}

func MySQLOpts(c config.DatabaseConfig) db.MySQLOpts {
	return db.MySQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

func ClickHouseOpts(c config.DatabaseConfig) db.ClickHouseOpts {
	return db.ClickHouseOpts{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// NewCore builds every core service. The provisioner needs oauth.state_secret;
// callers that only deliver (the worker) may leave it empty.
func NewCore(cfg config.Config, mysqlDB *sqlx.DB, log *zap.Logger) (*Core, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Core{
		Tenants:     repository.NewTenantsRepository(mysqlDB),
		Credentials: repository.NewCredentialsRepository(mysqlDB),
		Leads:       repository.NewLeadsRepository(mysqlDB),
		Outbox:      repository.NewOutboxRepository(mysqlDB),
	}

	c.Registry = registry.New(c.Tenants)
	c.Grants = grants.New(c.Credentials, log.Named("grants"))
	c.OAuth = google.NewOAuth(google.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURI:  cfg.Google.RedirectURI,
		Timeout:      cfg.Google.Timeout,
	})
	breaker := google.NewBreaker(
		cfg.Google.Breaker.FailThreshold,
		time.Duration(cfg.Google.Breaker.OpenForMs)*time.Millisecond,
	)
	c.Sheets = google.NewSheets(cfg.Google.Timeout, breaker)
	limiter := google.NewTenantLimiter(cfg.Google.AppendRPS, cfg.Google.AppendBurst)
	c.Coordinator = delivery.NewCoordinator(c.Registry, c.Grants, c.OAuth, c.Sheets, limiter, log.Named("delivery"))

	if cfg.OAuth.StateSecret != "" {
		codec, err := provision.NewStateCodec(cfg.OAuth.StateSecret, cfg.OAuth.StateTTL)
		if err != nil {
			return nil, fmt.Errorf("state codec: %w", err)
		}
		c.Provisioner = provision.New(c.Tenants, c.Grants, c.OAuth, c.Sheets, codec, cfg.Google.SheetTitlePrefix, log.Named("provision"))
	}
	return c, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/app"
	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/db"
	httpSrv "github.com/jmehdipour/lead-gateway/internal/http"
	"github.com/jmehdipour/lead-gateway/internal/logger"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/service/intake"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, app.MySQLOpts(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		if serveMigrate {
			if err := db.EnsureSchema(cmd.Context(), mysqlDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema ensured")
		}

		// Redis (rate limiting) and ClickHouse (reports) are optional.
		var rds *redis.Client
		if cfg.Redis.Addr != "" {
			rds, err = db.NewRedisClient(db.RedisOpts{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = rds.Close() }()
		} else {
			log.Warn("redis not configured; rate limiting disabled")
		}

		var reports repository.CHLeadsRepository
		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(app.ClickHouseOpts(cfg.ClickHouse))
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() {
				_ = chDB.Close()
			}()
			reports = repository.NewCHLeadsRepository(chDB)
		} else {
			log.Warn("clickhouse not configured; lead reports disabled")
		}

		core, err := app.NewCore(cfg, mysqlDB, log)
		if err != nil {
			return err
		}
		leads := intake.New(mysqlDB, core.Registry, core.Leads, core.Outbox, core.Coordinator, log.Named("intake"))

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Tenants:     core.Tenants,
			Resolver:    core.Registry,
			Leads:       leads,
			Provisioner: core.Provisioner,
			Reports:     reports,
			Redis:       rds,
			Log:         log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "ensure the MySQL schema before listening")
}

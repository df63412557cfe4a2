package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/app"
	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/db"
	"github.com/jmehdipour/lead-gateway/internal/logger"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, app.MySQLOpts(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		n, err := seedTenants(cmd.Context(), sqlDB, demoTenants())
		if err != nil {
			return err
		}
		log.Info("seed completed", zap.Int("tenants", n))
		return nil
	},
}

// demoTenants are deterministic so local forms can hard-code their keys.
func demoTenants() []model.Tenant {
	str := func(s string) *string { return &s }
	return []model.Tenant{
		{
			ID:             "00000000-0000-0000-0000-000000000001",
			BuyerEmail:     str("owner@acme.test"),
			BuyerName:      str("Acme Insurance"),
			PublishableKey: "pk_test_1",
			AllowedOrigins: model.Origins{"http://localhost:5173"},
			Status:         model.TenantActive,
		},
		{
			ID:             "00000000-0000-0000-0000-000000000002",
			BuyerEmail:     str("owner@foobar.test"),
			BuyerName:      str("Foobar Realty"),
			PublishableKey: "pk_test_2",
			AllowedOrigins: model.Origins{},
			Status:         model.TenantActive,
		},
		{
			ID:             "00000000-0000-0000-0000-000000000003",
			BuyerName:      str("Disabled Co"),
			PublishableKey: "pk_test_3",
			AllowedOrigins: model.Origins{},
			Status:         model.TenantDisabled,
		},
	}
}

// seedTenants upserts on the primary key, so it can run repeatedly.
func seedTenants(ctx context.Context, dbx *sqlx.DB, tenants []model.Tenant) (int, error) {
	const q = `
INSERT INTO tenants
    (tenant_id, buyer_email, buyer_name, publishable_key, allowed_origins, status, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    buyer_email     = VALUES(buyer_email),
    buyer_name      = VALUES(buyer_name),
    allowed_origins = VALUES(allowed_origins),
    status          = VALUES(status),
    updated_at      = VALUES(updated_at)
`
	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, t := range tenants {
		if _, err := tx.ExecContext(ctx, q,
			t.ID, t.BuyerEmail, t.BuyerName, t.PublishableKey, t.AllowedOrigins, t.Status, now, now,
		); err != nil {
			return 0, fmt.Errorf("insert tenant %q: %w", t.PublishableKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tenants: %w", err)
	}
	return len(tenants), nil
}

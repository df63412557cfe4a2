package cmd

import (
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/app"
	"github.com/jmehdipour/lead-gateway/internal/config"
	"github.com/jmehdipour/lead-gateway/internal/db"
	"github.com/jmehdipour/lead-gateway/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables (idempotent, safe on every boot)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, app.MySQLOpts(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if err := db.EnsureSchema(cmd.Context(), sqlDB); err != nil {
			return err
		}

		stmts, _ := db.SchemaStatements()
		log.Info("migration complete", zap.Int("statements", len(stmts)))
		return nil
	},
}

package worker

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
	"github.com/jmehdipour/lead-gateway/internal/kafka"
	"github.com/jmehdipour/lead-gateway/internal/logger"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var redeliverCmd = &cobra.Command{
	Use:   "redeliver",
	Short: "Redeliver leads whose synchronous delivery failed",
	RunE:  runRedeliver,
}

func runRedeliver(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.MySQL.DSN == "" {
		return fmt.Errorf("missing config: mysql.dsn")
	}

	log := logger.Init(cfg.Log.Level).Named("redeliver")
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, app.MySQLOpts(cfg.MySQL))
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// the worker only delivers, so no state secret is needed here
	core, err := app.NewCore(cfg, dbx, log)
	if err != nil {
		return err
	}

	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = repository.TopicRedeliver
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "leadgw-redeliver"
	}

	consumer, err := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer consumer.Close()

	w := worker.NewRedeliverer(dbx, consumer, core.Leads, core.Coordinator, log)

	// tune knobs
	if cfg.Redelivery.WorkerCount > 0 {
		w.Workers = cfg.Redelivery.WorkerCount
	}
	if cfg.Redelivery.BatchSize > 0 {
		w.BatchSize = cfg.Redelivery.BatchSize
	}
	if cfg.Redelivery.BatchWait > 0 {
		w.BatchWait = cfg.Redelivery.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("redelivery worker started",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("workers", w.Workers),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}

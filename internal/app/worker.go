package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go-hris-leave/internal/config"
	"go-hris-leave/internal/leavebalance"
	"go-hris-leave/internal/messaging/kafka"
	"go-hris-leave/internal/messaging/kafka/producer"
	"go-hris-leave/internal/shared/connection"

	"go.uber.org/zap"
)

// RunWorker relays the notification outbox to kafka and periodically
// re-derives every balance. Either loop may be switched off by config, but
// not both.
func RunWorker(cfg *config.Config) error {
	logger := zap.L().Named("app.worker")

	if cfg.App.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("worker requires the postgres storage driver")
	}
	relay := cfg.Kafka.Broker != ""
	reconcile := cfg.Worker.ReconcileInterval > 0
	if !relay && !reconcile {
		return fmt.Errorf("worker has nothing to do: set KAFKA_BROKER or RECONCILE_INTERVAL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	i, err := Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer i.Close()

	var wg sync.WaitGroup

	if relay {
		kafkaWriter, err := connection.ConnectKafkaWithRetry(cfg.Kafka.Broker, cfg.Kafka.MaxRetries)
		if err != nil {
			return err
		}
		defer kafkaWriter.Close()

		outboxRepo := kafka.NewOutboxRepository(i.SQLDB)
		wg.Add(1)
		go func() {
			defer wg.Done()
			producer.ProcessOutboxEvents(ctx, outboxRepo, kafkaWriter, logger, cfg.Kafka.PollInterval)
		}()
	}

	if reconcile {
		m, err := BuildModules(cfg, i, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := m.Dispatcher.Close(closeCtx); err != nil {
				logger.Warn("dispatcher close failed", zap.Error(err))
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			leavebalance.RunReconciler(ctx, m.Ledger, m.Directory, logger, cfg.Worker.ReconcileInterval)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker shutting down")
	cancel()
	wg.Wait()

	return nil
}

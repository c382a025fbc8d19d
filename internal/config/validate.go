package config

import "fmt"

func (c *Config) Validate() error {
	switch c.App.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("app.storage_driver must be %q or %q (got %q)", StorageDriverPostgres, StorageDriverMemory, c.App.StorageDriver)
	}

	switch c.App.LockDriver {
	case LockDriverLocal, LockDriverRedis:
	default:
		return fmt.Errorf("app.lock_driver must be %q or %q (got %q)", LockDriverLocal, LockDriverRedis, c.App.LockDriver)
	}

	if c.App.LockDriver == LockDriverRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when lock_driver is redis")
	}

	switch c.App.NotifySink {
	case NotifySinkLog, NotifySinkKafka, NotifySinkOutbox:
	default:
		return fmt.Errorf("app.notify_sink must be one of log, kafka, outbox (got %q)", c.App.NotifySink)
	}

	if c.App.NotifySink == NotifySinkKafka && c.Kafka.Broker == "" {
		return fmt.Errorf("kafka.broker is required when notify_sink is kafka")
	}
	if c.App.NotifySink == NotifySinkOutbox && c.App.StorageDriver != StorageDriverPostgres {
		return fmt.Errorf("notify_sink outbox requires the postgres storage driver")
	}

	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters in production (got %d)", len(c.Auth.JWTSecret))
	}

	if err := c.Leave.validate(); err != nil {
		return fmt.Errorf("leave: %w", err)
	}

	if c.Worker.ReconcileInterval < 0 {
		return fmt.Errorf("worker.reconcile_interval must be >= 0 (got %s)", c.Worker.ReconcileInterval)
	}
	return nil
}

func (l *LeaveConfig) validate() error {
	if l.DefaultAnnual < 0 || l.DefaultSick < 0 || l.DefaultPersonal < 0 {
		return fmt.Errorf("default quotas must be >= 0")
	}
	if l.RecomputeChunkSize <= 0 {
		return fmt.Errorf("recompute_chunk_size must be > 0 (got %d)", l.RecomputeChunkSize)
	}
	if l.RecomputeParallel <= 0 {
		return fmt.Errorf("recompute_parallel must be > 0 (got %d)", l.RecomputeParallel)
	}
	if l.NotificationBuffer <= 0 {
		return fmt.Errorf("notification_buffer must be > 0 (got %d)", l.NotificationBuffer)
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"

	NotifySinkLog    = "log"
	NotifySinkKafka  = "kafka"
	NotifySinkOutbox = "outbox"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Leave    LeaveConfig    `yaml:"leave"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type AppConfig struct {
	Env           string `yaml:"env"            env:"APP_ENV"         env-default:"development"`
	LogLevel      string `yaml:"log_level"      env:"LOG_LEVEL"       env-default:"info"`
	StorageDriver string `yaml:"storage_driver" env:"STORAGE_DRIVER"  env-default:"postgres"`
	LockDriver    string `yaml:"lock_driver"    env:"LOCK_DRIVER"     env-default:"local"`
	NotifySink    string `yaml:"notify_sink"    env:"NOTIFY_SINK"     env-default:"log"`
	RBACModelPath string `yaml:"rbac_model"     env:"RBAC_MODEL_PATH" env-default:"internal/rbac/infra/model.conf"`

	// MemorySeedPath is a JSON fixture loaded into the memory driver at start.
	MemorySeedPath string `yaml:"memory_seed" env:"MEMORY_SEED_PATH"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"          env:"PORT"                 env-default:"3000"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"SERVER_READ_TIMEOUT"  env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"SERVER_IDLE_TIMEOUT"  env-default:"60s"`
}

type DatabaseConfig struct {
	Host        string `yaml:"host"         env:"DB_HOST"     env-default:"localhost"`
	User        string `yaml:"user"         env:"DB_USER"     env-default:"postgres"`
	Password    string `yaml:"password"     env:"DB_PASSWORD"`
	Name        string `yaml:"name"         env:"DB_NAME"     env-default:"go_hris"`
	Port        string `yaml:"port"         env:"DB_PORT"     env-default:"5432"`
	SSLMode     string `yaml:"sslmode"      env:"DB_SSLMODE"  env-default:"disable"`
	MaxRetries  int    `yaml:"max_retries"  env:"DB_MAX_RETRIES" env-default:"5"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"false"`
}

// RedisConfig with an empty Addr disables the employee cache and
// idempotent create replay.
type RedisConfig struct {
	Addr       string `yaml:"addr"        env:"REDIS_ADDR"`
	MaxRetries int    `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"5"`
}

type KafkaConfig struct {
	Broker        string        `yaml:"broker"         env:"KAFKA_BROKER"`
	ConsumerGroup string        `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"go-hris-leave-balance"`
	MaxRetries    int           `yaml:"max_retries"    env:"KAFKA_MAX_RETRIES"    env-default:"5"`
	PollInterval  time.Duration `yaml:"poll_interval"  env:"OUTBOX_POLL_INTERVAL" env-default:"3s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type LeaveConfig struct {
	DefaultAnnual       int           `yaml:"default_annual"       env:"LEAVE_DEFAULT_ANNUAL"       env-default:"6"`
	DefaultSick         int           `yaml:"default_sick"         env:"LEAVE_DEFAULT_SICK"         env-default:"6"`
	DefaultPersonal     int           `yaml:"default_personal"     env:"LEAVE_DEFAULT_PERSONAL"     env-default:"6"`
	RecomputeChunkSize  int           `yaml:"recompute_chunk_size" env:"LEAVE_RECOMPUTE_CHUNK_SIZE" env-default:"100"`
	RecomputeParallel   int           `yaml:"recompute_parallel"   env:"LEAVE_RECOMPUTE_PARALLEL"   env-default:"4"`
	LockTTL             time.Duration `yaml:"lock_ttl"             env:"LEAVE_LOCK_TTL"             env-default:"30s"`
	NotificationBuffer  int           `yaml:"notification_buffer"  env:"LEAVE_NOTIFICATION_BUFFER"  env-default:"256"`
	RateLimitPerSecond  float64       `yaml:"rate_limit_rps"       env:"LEAVE_RATE_LIMIT_RPS"       env-default:"5"`
	RateLimitBurst      int           `yaml:"rate_limit_burst"     env:"LEAVE_RATE_LIMIT_BURST"     env-default:"10"`
}

type WorkerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"RECONCILE_INTERVAL" env-default:"1h"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

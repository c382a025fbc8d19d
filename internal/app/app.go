package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-hris-leave/internal/config"
	"go-hris-leave/internal/employee"
	"go-hris-leave/internal/leave"
	"go-hris-leave/internal/leavebalance"
	"go-hris-leave/internal/leavepolicy"
	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/messaging/kafka"
	"go-hris-leave/internal/notification"
	"go-hris-leave/internal/rbac"
	"go-hris-leave/internal/rbac/infra"
	"go-hris-leave/internal/shared/connection"
	"go-hris-leave/internal/shared/keylock"
	"go-hris-leave/internal/shared/migrations"
	"go-hris-leave/internal/shared/txn"
	"go-hris-leave/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infra holds the connections one process opened. Exactly one of GormDB and
// Memory is set, depending on the storage driver.
type Infra struct {
	GormDB *gorm.DB
	SQLDB  *sql.DB
	Memory *memory.Store
	Redis  *redis.Client

	closers []func() error
}

func (i *Infra) onClose(fn func() error) {
	i.closers = append(i.closers, fn)
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

func (i *Infra) TxRunner() txn.Runner {
	if i.SQLDB == nil {
		return txn.Nop()
	}
	return txn.NewSQLRunner(i.SQLDB)
}

func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	out := &Infra{}

	switch cfg.App.StorageDriver {
	case config.StorageDriverPostgres:
		gormDB, err := connection.ConnectGORMWithRetry(cfg.Database.DSN(), cfg.Database.MaxRetries)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		out.GormDB = gormDB
		out.SQLDB = sqlDB
		out.onClose(sqlDB.Close)
		logger.Info("database connection established")

		if cfg.Database.AutoMigrate {
			if err := migrations.Up(ctx, sqlDB); err != nil {
				_ = out.Close()
				return nil, err
			}
		}
	default:
		store := memory.New()
		if cfg.App.MemorySeedPath != "" {
			if err := store.LoadSeedFile(cfg.App.MemorySeedPath); err != nil {
				return nil, err
			}
			logger.Info("memory store seeded", zap.String("path", cfg.App.MemorySeedPath))
		}
		out.Memory = store
		logger.Warn("using in-memory storage, data is lost on exit")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.Redis.MaxRetries)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Redis = rdb
		out.onClose(rdb.Close)
		logger.Info("redis connection established")
	}

	return out, nil
}

type repositories struct {
	employees employee.Repository
	leaves    leave.Repository
	balances  leavebalance.Repository
	usage     leavebalance.UsageRepository
	policies  leavepolicy.Repository
	rbac      rbac.Repository
}

func (i *Infra) repositories() repositories {
	if i.Memory != nil {
		return repositories{
			employees: i.Memory.Employees(),
			leaves:    i.Memory.Leaves(),
			balances:  i.Memory.Balances(),
			usage:     i.Memory.Usage(),
			policies:  i.Memory.Policies(),
			rbac:      i.Memory.RBAC(),
		}
	}
	return repositories{
		employees: employee.NewRepository(i.GormDB),
		leaves:    leave.NewRepository(i.GormDB),
		balances:  leavebalance.NewRepository(i.GormDB),
		usage:     leavebalance.NewUsageRepository(i.GormDB),
		policies:  leavepolicy.NewRepository(i.GormDB),
		rbac:      rbac.NewRepository(i.GormDB),
	}
}

// Modules is the wired leave subsystem shared by api, worker and consumer.
type Modules struct {
	Directory   employee.Directory
	Policies    leavepolicy.Service
	Ledger      leavebalance.Service
	PolicyAdmin *leavebalance.PolicyAdmin
	RBAC        rbac.Service
	Workflow    leave.Service
	Dispatcher  *notification.Dispatcher
}

func defaultQuotas(cfg config.LeaveConfig) leavepolicy.Defaults {
	return leavepolicy.Defaults{
		leavetype.Annual:   cfg.DefaultAnnual,
		leavetype.Sick:     cfg.DefaultSick,
		leavetype.Personal: cfg.DefaultPersonal,
	}
}

func newLocker(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) keylock.Locker {
	if cfg.App.LockDriver == config.LockDriverRedis && rdb != nil {
		return keylock.NewRedis(rdb, keylock.WithTTL(cfg.Leave.LockTTL), keylock.WithLogger(logger))
	}
	return keylock.NewLocal()
}

func newSink(cfg *config.Config, i *Infra, logger *zap.Logger) (notification.Sink, error) {
	switch cfg.App.NotifySink {
	case config.NotifySinkKafka:
		writer, err := connection.ConnectKafkaWithRetry(cfg.Kafka.Broker, cfg.Kafka.MaxRetries)
		if err != nil {
			return nil, err
		}
		i.onClose(writer.Close)
		return notification.NewKafkaSink(writer), nil
	case config.NotifySinkOutbox:
		if i.SQLDB == nil {
			return nil, fmt.Errorf("outbox sink needs a database connection")
		}
		return notification.NewOutboxSink(kafka.NewOutboxRepository(i.SQLDB)), nil
	default:
		return notification.NewLogSink(logger), nil
	}
}

// BuildModules wires every service on top of i. The dispatcher is started;
// callers close it before closing i.
func BuildModules(cfg *config.Config, i *Infra, logger *zap.Logger) (*Modules, error) {
	repos := i.repositories()
	tx := i.TxRunner()
	locker := newLocker(cfg, i.Redis, logger)

	enforcer, err := infra.NewEnforcer(cfg.App.RBACModelPath)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	rbacService := rbac.NewService(repos.rbac, enforcer, logger)

	directory := employee.NewDirectory(repos.employees, i.Redis, logger)
	policies := leavepolicy.NewService(tx, repos.policies, defaultQuotas(cfg.Leave), logger)
	ledger := leavebalance.NewService(
		tx,
		repos.balances,
		repos.usage,
		policies,
		directory,
		locker,
		leavebalance.Options{
			ChunkSize:   cfg.Leave.RecomputeChunkSize,
			Parallelism: cfg.Leave.RecomputeParallel,
		},
		logger,
	)

	sink, err := newSink(cfg, i, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notification.NewDispatcher(sink, directory, cfg.Leave.NotificationBuffer, logger)
	dispatcher.Start()

	workflow := leave.NewService(
		tx,
		repos.leaves,
		ledger,
		directory,
		rbac.NewLeaveApprover(rbacService),
		dispatcher,
		locker,
		logger,
	)

	return &Modules{
		Directory:   directory,
		Policies:    policies,
		Ledger:      ledger,
		PolicyAdmin: leavebalance.NewPolicyAdmin(policies, ledger, logger),
		RBAC:        rbacService,
		Workflow:    workflow,
		Dispatcher:  dispatcher,
	}, nil
}

// BuildApp connects infrastructure, wires the modules and mounts the HTTP
// routes. The returned func drains notifications and closes connections.
func BuildApp(ctx context.Context, router *gin.Engine, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	i, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m, err := BuildModules(cfg, i, logger)
	if err != nil {
		_ = i.Close()
		return nil, err
	}

	registerModules(router, cfg, i, m, logger)

	return func(ctx context.Context) error {
		return errors.Join(m.Dispatcher.Close(ctx), i.Close())
	}, nil
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-hris-leave/internal/events"
	"go-hris-leave/internal/leavebalance"
	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafkago.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type BalanceSeeder interface {
	RecomputeOne(ctx context.Context, companyID, employeeID string) ([]leavebalance.LeaveBalance, error)
}

type DirectoryCache interface {
	Invalidate(ctx context.Context, companyID, employeeID string) error
}

// SeedRetry bounds in-place retries of a failing seed. A fetched message is
// never redelivered within a session, so the loop retries before moving on.
type SeedRetry struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultSeedRetry = SeedRetry{Attempts: 3, Backoff: 500 * time.Millisecond}

// ConsumeEmployeeLifecycle seeds the balances of every newly created
// employee. Every message is committed once handled or given up on; only
// shutdown leaves one uncommitted.
func ConsumeEmployeeLifecycle(
	ctx context.Context,
	reader MessageReader,
	seeder BalanceSeeder,
	cache DirectoryCache,
	logger *zap.Logger,
) {
	if logger == nil {
		logger = zap.L()
	}
	log := logger.Named("kafka.consumer.employee_lifecycle")
	log.Info("employee lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("employee lifecycle consumer stopped")
				return
			}
			log.Error("fetch employee lifecycle message failed", zap.Error(err))
			continue
		}

		if !HandleEmployeeLifecycle(ctx, msg, seeder, cache, DefaultSeedRetry, log) {
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit employee lifecycle message failed", zap.Error(err))
		}
	}
}

// HandleEmployeeLifecycle processes one message and reports whether it may
// be committed. It returns false only when ctx ends mid-retry.
func HandleEmployeeLifecycle(
	ctx context.Context,
	msg kafkago.Message,
	seeder BalanceSeeder,
	cache DirectoryCache,
	retry SeedRetry,
	log *zap.Logger,
) bool {
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	var event events.EmployeeCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error("decode employee lifecycle event failed", zap.Error(err))
		return true
	}
	if event.EventType != "" && event.EventType != events.EventTypeEmployeeCreated {
		log.Debug("ignoring employee lifecycle event", zap.String("event_type", event.EventType))
		return true
	}

	if cache != nil {
		if err := cache.Invalidate(ctx, event.CompanyID, event.EmployeeID); err != nil {
			log.Warn("invalidate employee cache failed", zap.String("employee_id", event.EmployeeID), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("employee_id", event.EmployeeID),
		zap.String("company_id", event.CompanyID),
		zap.String("request_id", event.RequestID),
	}

	for attempt := 1; ; attempt++ {
		_, err := seeder.RecomputeOne(ctx, event.CompanyID, event.EmployeeID)
		switch {
		case err == nil:
			log.Info("leave balances seeded from employee_created event", fields...)
			return true
		case errors.Is(err, leavebalanceerrors.ErrInvalidCompanyID),
			errors.Is(err, leavebalanceerrors.ErrInvalidEmployeeID),
			errors.Is(err, leavebalanceerrors.ErrEmployeeNotFound):
			log.Warn("employee_created event cannot be seeded, skipping", append(fields, zap.Error(err))...)
			return true
		case attempt >= retry.Attempts:
			// Balances are still seeded on the employee's first read.
			log.Error("seed leave balances failed, giving up", append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			return true
		}

		log.Warn("seed leave balances failed, retrying", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * retry.Backoff):
		}
	}
}

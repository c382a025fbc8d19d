package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go-hris-leave/internal/events"
	"go-hris-leave/internal/leavebalance"
	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"
	"go-hris-leave/internal/messaging/kafka/consumer"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeSeeder fails the first len(errs) calls with errs in order.
type fakeSeeder struct {
	calls []string
	errs  []error
}

func (f *fakeSeeder) RecomputeOne(_ context.Context, companyID, employeeID string) ([]leavebalance.LeaveBalance, error) {
	f.calls = append(f.calls, companyID+"/"+employeeID)
	if n := len(f.calls); n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	return nil, nil
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) Invalidate(_ context.Context, companyID, employeeID string) error {
	f.invalidated = append(f.invalidated, companyID+"/"+employeeID)
	return nil
}

func message(t *testing.T, event events.EmployeeCreatedEvent) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	return kafkago.Message{Topic: events.EmployeeCreatedTopic, Value: payload}
}

func TestHandleEmployeeLifecycle(t *testing.T) {
	ctx := context.Background()
	created := events.EmployeeCreatedEvent{
		EventType:  events.EventTypeEmployeeCreated,
		EmployeeID: "e-1",
		CompanyID:  "c-1",
		OccurredAt: time.Now(),
	}
	retry := consumer.SeedRetry{Attempts: 3, Backoff: time.Millisecond}

	t.Run("seeds balances and commits", func(t *testing.T) {
		seeder, cache := &fakeSeeder{}, &fakeCache{}

		ok := consumer.HandleEmployeeLifecycle(ctx, message(t, created), seeder, cache, retry, zap.NewNop())

		assert.True(t, ok)
		assert.Equal(t, []string{"c-1/e-1"}, seeder.calls)
		assert.Equal(t, []string{"c-1/e-1"}, cache.invalidated)
	})

	t.Run("transient failure is retried in place", func(t *testing.T) {
		down := errors.New("db down")
		seeder := &fakeSeeder{errs: []error{down, down}}

		ok := consumer.HandleEmployeeLifecycle(ctx, message(t, created), seeder, nil, retry, zap.NewNop())

		assert.True(t, ok)
		assert.Len(t, seeder.calls, 3)
	})

	t.Run("gives up after the last attempt and commits", func(t *testing.T) {
		down := errors.New("db down")
		seeder := &fakeSeeder{errs: []error{down, down, down, down}}

		ok := consumer.HandleEmployeeLifecycle(ctx, message(t, created), seeder, nil, retry, zap.NewNop())

		assert.True(t, ok)
		assert.Len(t, seeder.calls, 3)
	})

	t.Run("shutdown during backoff leaves the message uncommitted", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		seeder := &fakeSeeder{errs: []error{errors.New("db down")}}

		ok := consumer.HandleEmployeeLifecycle(cancelled, message(t, created), seeder, nil,
			consumer.SeedRetry{Attempts: 3, Backoff: time.Hour}, zap.NewNop())

		assert.False(t, ok)
		assert.Len(t, seeder.calls, 1)
	})

	permanent := []struct {
		name string
		err  error
	}{
		{"invalid employee id", leavebalanceerrors.ErrInvalidEmployeeID},
		{"invalid company id", leavebalanceerrors.ErrInvalidCompanyID},
		{"unknown employee", leavebalanceerrors.ErrEmployeeNotFound},
	}
	for _, tt := range permanent {
		t.Run(tt.name+" is committed without retry", func(t *testing.T) {
			seeder := &fakeSeeder{errs: []error{tt.err}}

			ok := consumer.HandleEmployeeLifecycle(ctx, message(t, created), seeder, nil, retry, zap.NewNop())

			assert.True(t, ok)
			assert.Len(t, seeder.calls, 1)
		})
	}

	t.Run("undecodable payload is committed", func(t *testing.T) {
		seeder := &fakeSeeder{}

		ok := consumer.HandleEmployeeLifecycle(ctx, kafkago.Message{Value: []byte("{")}, seeder, nil, retry, zap.NewNop())

		assert.True(t, ok)
		assert.Empty(t, seeder.calls)
	})

	t.Run("other lifecycle events are ignored", func(t *testing.T) {
		seeder := &fakeSeeder{}
		other := created
		other.EventType = "employee.terminated"

		ok := consumer.HandleEmployeeLifecycle(ctx, message(t, other), seeder, nil, retry, zap.NewNop())

		assert.True(t, ok)
		assert.Empty(t, seeder.calls)
	})
}

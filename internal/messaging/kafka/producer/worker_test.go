package producer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-hris-leave/internal/messaging/kafka"
	kafkaMock "go-hris-leave/internal/messaging/kafka/mock"
	"go-hris-leave/internal/messaging/kafka/producer"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fakeWriter struct {
	failTopic string
	msgs      []kafkago.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		if m.Topic == w.failTopic {
			return errors.New("write failed")
		}
		w.msgs = append(w.msgs, m)
	}
	return nil
}

func header(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProcessPendingEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("sends and marks every event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{}

		pending := []kafka.OutboxEvent{
			kafka.NewOutboxEvent("hr.leave.request.v1", "leave_request", "leave-1", "leave.applied", "rid-1", []byte(`{}`)),
			kafka.NewOutboxEvent("hr.leave.request.v1", "leave_request", "leave-2", "leave.approved", "", []byte(`{}`)),
		}
		repo.EXPECT().ListPending(ctx, 50).Return(pending, nil)
		repo.EXPECT().MarkSent(ctx, pending[0].ID).Return(nil)
		repo.EXPECT().MarkSent(ctx, pending[1].ID).Return(nil)

		sent, err := producer.ProcessPendingEvents(ctx, repo, writer, zap.NewNop())

		assert.NoError(t, err)
		assert.Equal(t, 2, sent)
		assert.Len(t, writer.msgs, 2)
		assert.Equal(t, "leave-1", string(writer.msgs[0].Key))
		assert.Equal(t, "rid-1", header(writer.msgs[0], "request_id"))
		assert.Equal(t, "", header(writer.msgs[1], "request_id"))
		assert.Equal(t, "leave.approved", header(writer.msgs[1], "event_type"))
	})

	t.Run("failed publish is marked for retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		writer := &fakeWriter{failTopic: "broken"}

		event := kafka.NewOutboxEvent("broken", "leave_request", "leave-1", "leave.applied", "", []byte(`{}`))
		repo.EXPECT().ListPending(ctx, 50).Return([]kafka.OutboxEvent{event}, nil)
		repo.EXPECT().MarkFailed(ctx, event.ID, "write failed").Return(nil)

		sent, err := producer.ProcessPendingEvents(ctx, repo, writer, zap.NewNop())

		assert.NoError(t, err)
		assert.Equal(t, 0, sent)
	})

	t.Run("list error is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)

		repo.EXPECT().ListPending(ctx, 50).Return(nil, errors.New("db down"))

		_, err := producer.ProcessPendingEvents(ctx, repo, &fakeWriter{}, zap.NewNop())

		assert.EqualError(t, err, "db down")
	})
}

func TestPurgeSentEvents(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns purged count", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		repo.EXPECT().PurgeSent(ctx, cutoff).Return(int64(3), nil)

		n, err := producer.PurgeSentEvents(ctx, repo, cutoff, zap.NewNop())

		assert.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("repository error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := kafkaMock.NewMockOutboxRepository(ctrl)
		repo.EXPECT().PurgeSent(ctx, cutoff).Return(int64(0), errors.New("db down"))

		_, err := producer.PurgeSentEvents(ctx, repo, cutoff, zap.NewNop())

		assert.Error(t, err)
	})
}

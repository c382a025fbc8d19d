package notification

import (
	"context"
	"encoding/json"

	"go-hris-leave/internal/events"
	"go-hris-leave/internal/messaging/kafka"
	"go-hris-leave/internal/messaging/kafka/producer"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogSink writes every notification to the log. Used when no broker is set up.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger ...*zap.Logger) *LogSink {
	l := zap.L().Named("notification.log_sink")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.log_sink")
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Notify(_ context.Context, event Event, recipients []string) error {
	s.logger.Info("leave notification",
		zap.String("event_type", event.Kind.EventType()),
		zap.String("leave_id", event.LeaveID),
		zap.String("company_id", event.CompanyID),
		zap.String("employee_id", event.EmployeeID),
		zap.String("status", event.Status),
		zap.Strings("recipients", recipients),
	)
	return nil
}

// KafkaSink writes straight to the leave request topic.
type KafkaSink struct {
	writer producer.MessageWriter
	topic  string
}

func NewKafkaSink(writer producer.MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, topic: events.LeaveRequestTopic}
}

func (s *KafkaSink) Notify(ctx context.Context, event Event, recipients []string) error {
	payload, err := json.Marshal(event.toWire(recipients))
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafkago.Message{
		Topic: s.topic,
		Key:   []byte(event.LeaveID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Kind.EventType())},
			{Key: "aggregate_type", Value: []byte(events.LeaveAggregateType)},
			{Key: "request_id", Value: []byte(event.RequestID)},
		},
	})
}

// OutboxSink stores the event for the relay worker, which retries delivery
// to kafka with backoff. The row is written after the leave change commits,
// so an event dropped before Notify runs is not recovered.
type OutboxSink struct {
	repo kafka.OutboxRepository
}

func NewOutboxSink(repo kafka.OutboxRepository) *OutboxSink {
	return &OutboxSink{repo: repo}
}

func (s *OutboxSink) Notify(ctx context.Context, event Event, recipients []string) error {
	payload, err := json.Marshal(event.toWire(recipients))
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, kafka.NewOutboxEvent(
		events.LeaveRequestTopic,
		events.LeaveAggregateType,
		event.LeaveID,
		event.Kind.EventType(),
		event.RequestID,
		payload,
	))
}

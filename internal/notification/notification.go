// Package notification delivers leave request events to people after the
// state change that caused them has committed. Delivery is best effort.
package notification

import (
	"context"
	"time"

	"go-hris-leave/internal/events"
)

type Kind string

const (
	KindApplied   Kind = "applied"
	KindApproved  Kind = "approved"
	KindRejected  Kind = "rejected"
	KindCancelled Kind = "cancelled"
)

// EventType maps the kind to its wire event type.
func (k Kind) EventType() string {
	switch k {
	case KindApplied:
		return events.EventTypeLeaveApplied
	case KindApproved:
		return events.EventTypeLeaveApproved
	case KindRejected:
		return events.EventTypeLeaveRejected
	case KindCancelled:
		return events.EventTypeLeaveCancelled
	default:
		return "leave." + string(k)
	}
}

type Event struct {
	Kind       Kind
	RequestID  string
	LeaveID    string
	CompanyID  string
	EmployeeID string
	LeaveType  string
	StartDate  string
	EndDate    string
	TotalDays  int
	Status     string
	ActorID    string
	Reason     string
	OccurredAt time.Time
}

func (e Event) toWire(recipients []string) events.LeaveRequestEvent {
	if recipients == nil {
		recipients = []string{}
	}
	return events.LeaveRequestEvent{
		EventType:  e.Kind.EventType(),
		RequestID:  e.RequestID,
		LeaveID:    e.LeaveID,
		CompanyID:  e.CompanyID,
		EmployeeID: e.EmployeeID,
		LeaveType:  e.LeaveType,
		StartDate:  e.StartDate,
		EndDate:    e.EndDate,
		TotalDays:  e.TotalDays,
		Status:     e.Status,
		ActorID:    e.ActorID,
		Reason:     e.Reason,
		Recipients: recipients,
		OccurredAt: e.OccurredAt,
	}
}

//go:generate mockgen -source=notification.go -destination=mock/notification_mock.go -package=mock
type Sink interface {
	Notify(ctx context.Context, event Event, recipients []string) error
}

type RecipientResolver interface {
	Recipients(ctx context.Context, companyID, employeeID string) ([]string, error)
}

// Publisher is what the workflow sees. Publish never blocks and never fails.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) {}

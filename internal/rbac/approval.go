package rbac

import (
	"context"

	"go-hris-leave/internal/domain"
)

const (
	ResourceLeave = "leave"
	ActionApprove = "approve"
)

// LeaveApprover answers whether an actor may decide on someone's leave
// request, using the leave:approve permission of the actor's roles.
type LeaveApprover struct {
	service           Service
	allowSelfApproval bool
}

type ApproverOption func(*LeaveApprover)

func AllowSelfApproval() ApproverOption {
	return func(a *LeaveApprover) { a.allowSelfApproval = true }
}

func NewLeaveApprover(service Service, opts ...ApproverOption) *LeaveApprover {
	a := &LeaveApprover{service: service}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LeaveApprover) CanApprove(ctx context.Context, companyID, actorID, ownerID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if actorID == ownerID && !a.allowSelfApproval {
		return false, nil
	}
	return a.service.EnforceContext(ctx, domain.EnforceRequest{
		EmployeeID: actorID,
		CompanyID:  companyID,
		Resource:   ResourceLeave,
		Action:     ActionApprove,
	})
}

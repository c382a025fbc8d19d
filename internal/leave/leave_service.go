package leave

import (
	"context"
	"database/sql"
	"strings"
	"time"

	leaveerrors "go-hris-leave/internal/leave/errors"
	"go-hris-leave/internal/leavebalance"
	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"
	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/notification"
	"go-hris-leave/internal/shared/keylock"
	"go-hris-leave/internal/shared/txn"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionCancel  = "cancel"

	dateLayout = "2006-01-02"
)

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error)
	GetAll(ctx context.Context, companyID string, filter ListFilter) ([]LeaveResponse, error)
	GetByID(ctx context.Context, companyID, id string) (LeaveResponse, error)
	Approve(ctx context.Context, companyID, actorID, id string) (LeaveResponse, error)
	Reject(ctx context.Context, companyID, actorID, id, reason string) (LeaveResponse, error)
	Cancel(ctx context.Context, companyID, actorID, id string) (LeaveResponse, error)
	Transition(ctx context.Context, companyID, actorID, id string, req TransitionRequest) (LeaveResponse, error)
	Delete(ctx context.Context, companyID, actorID, id string) error
}

// Ledger is the balance side the workflow drives.
type Ledger interface {
	CheckSufficient(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int) (leavebalance.Availability, error)
	Deduct(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (leavebalance.LeaveBalance, error)
	Restore(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (leavebalance.LeaveBalance, error)
}

type Directory interface {
	Exists(ctx context.Context, companyID, employeeID string) (bool, error)
}

// Approver decides whether actorID may approve, reject or delete requests
// owned by ownerID.
type Approver interface {
	CanApprove(ctx context.Context, companyID, actorID, ownerID string) (bool, error)
}

type service struct {
	tx        txn.Runner
	repo      Repository
	ledger    Ledger
	directory Directory
	approver  Approver
	notifier  notification.Publisher
	locker    keylock.Locker
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(
	tx txn.Runner,
	repo Repository,
	ledger Ledger,
	directory Directory,
	approver Approver,
	notifier notification.Publisher,
	locker keylock.Locker,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	if notifier == nil {
		notifier = notification.Nop()
	}
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &service{
		tx:        tx,
		repo:      repo,
		ledger:    ledger,
		directory: directory,
		approver:  approver,
		notifier:  notifier,
		locker:    locker,
		now:       time.Now,
		logger:    l,
	}
}

func (s *service) Create(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error) {
	s.logger.Debug("create leave requested",
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	in, err := validateCreateRequest(companyID, actorID, req)
	if err != nil {
		s.logger.Warn("create leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	exists, err := s.directory.Exists(ctx, companyID, req.EmployeeID)
	if err != nil {
		s.logger.Error("create leave employee lookup failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if !exists {
		return LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
	}

	// Admission for one employee is serialized so two overlapping requests
	// cannot both pass the overlap check.
	unlock, err := s.locker.Lock(ctx, keylock.EmployeeKey(companyID, req.EmployeeID))
	if err != nil {
		return LeaveResponse{}, err
	}
	defer unlock()

	totalDays := spanDays(in.startDate, in.endDate)

	avail, err := s.ledger.CheckSufficient(ctx, companyID, req.EmployeeID, in.leaveType, totalDays)
	if err != nil {
		s.logger.Error("create leave balance check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if !avail.Sufficient {
		s.logger.Warn("create leave insufficient balance",
			zap.String("employee_id", req.EmployeeID),
			zap.String("leave_type", in.leaveType.String()),
			zap.Int("available", avail.Available),
			zap.Int("requested", totalDays),
		)
		return LeaveResponse{}, leavebalanceerrors.InsufficientBalance(in.leaveType.String(), avail.Available, totalDays)
	}

	overlap, err := s.repo.HasOverlappingPeriod(ctx, companyID, req.EmployeeID, in.startDate, in.endDate, nil)
	if err != nil {
		s.logger.Error("create leave overlap check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if overlap {
		s.logger.Warn("create leave overlap detected",
			zap.String("company_id", companyID),
			zap.String("employee_id", req.EmployeeID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
	}

	now := s.now().UTC()
	l := &Leave{
		ID:         uuid.New(),
		CompanyID:  in.companyID,
		EmployeeID: in.employeeID,
		LeaveType:  in.leaveType.String(),
		StartDate:  in.startDate,
		EndDate:    in.endDate,
		TotalDays:  totalDays,
		Reason:     strings.TrimSpace(req.Reason),
		Status:     StatusPending,
		CreatedBy:  in.actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, l); err != nil {
		s.logger.Error("create leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("create leave success",
		zap.String("leave_id", l.ID.String()),
		zap.String("company_id", companyID),
		zap.String("employee_id", req.EmployeeID),
		zap.Int("total_days", totalDays),
	)
	s.publish(ctx, notification.KindApplied, *l, actorID)

	return mapToResponse(*l), nil
}

func (s *service) GetAll(ctx context.Context, companyID string, filter ListFilter) ([]LeaveResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, leaveerrors.ErrInvalidCompanyID
	}
	if filter.EmployeeID != "" {
		if _, err := uuid.Parse(filter.EmployeeID); err != nil {
			return nil, leaveerrors.ErrInvalidEmployeeID
		}
	}
	if filter.Status != "" {
		filter.Status = strings.ToUpper(filter.Status)
		if !validStatus(filter.Status) {
			return nil, leaveerrors.ErrInvalidStatus
		}
	}

	leaves, err := s.repo.FindAllByCompany(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetByID(ctx context.Context, companyID, id string) (LeaveResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}

	l, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*l), nil
}

func (s *service) Transition(ctx context.Context, companyID, actorID, id string, req TransitionRequest) (LeaveResponse, error) {
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case ActionApprove:
		return s.Approve(ctx, companyID, actorID, id)
	case ActionReject:
		return s.Reject(ctx, companyID, actorID, id, req.Reason)
	case ActionCancel:
		return s.Cancel(ctx, companyID, actorID, id)
	default:
		return LeaveResponse{}, leaveerrors.ErrInvalidAction
	}
}

func (s *service) Approve(ctx context.Context, companyID, actorID, id string) (LeaveResponse, error) {
	var out Leave
	err := s.withRequest(ctx, "approve", companyID, actorID, id, func(l *Leave, actor uuid.UUID) error {
		if err := s.requireApprover(ctx, companyID, actorID, l); err != nil {
			return err
		}
		if l.Status != StatusPending {
			return leaveerrors.ErrAlreadyProcessed
		}

		next := *l
		now := s.now().UTC()
		next.Status = StatusApproved
		next.ApprovedBy = &actor
		next.ApprovedAt = &now
		next.RejectedBy = nil
		next.RejectedAt = nil
		next.RejectionReason = nil
		next.UpdatedAt = now

		_, err := s.ledger.Deduct(ctx, companyID, l.EmployeeID.String(), leavetype.LeaveType(l.LeaveType), l.TotalDays, s.casUpdate(ctx, &next, StatusPending))
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return LeaveResponse{}, err
	}

	s.publish(ctx, notification.KindApproved, out, actorID)
	return mapToResponse(out), nil
}

func (s *service) Reject(ctx context.Context, companyID, actorID, id, reason string) (LeaveResponse, error) {
	var out Leave
	err := s.withRequest(ctx, "reject", companyID, actorID, id, func(l *Leave, actor uuid.UUID) error {
		if err := s.requireApprover(ctx, companyID, actorID, l); err != nil {
			return err
		}
		if l.Status != StatusPending {
			return leaveerrors.ErrAlreadyProcessed
		}

		next := *l
		now := s.now().UTC()
		next.Status = StatusRejected
		next.RejectedBy = &actor
		next.RejectedAt = &now
		next.RejectionReason = nil
		if r := strings.TrimSpace(reason); r != "" {
			next.RejectionReason = &r
		}
		next.UpdatedAt = now

		if err := s.tx.WithinTx(ctx, s.casUpdate(ctx, &next, StatusPending)); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return LeaveResponse{}, err
	}

	s.publish(ctx, notification.KindRejected, out, actorID)
	return mapToResponse(out), nil
}

func (s *service) Cancel(ctx context.Context, companyID, actorID, id string) (LeaveResponse, error) {
	var out Leave
	err := s.withRequest(ctx, "cancel", companyID, actorID, id, func(l *Leave, actor uuid.UUID) error {
		if !isOwner(l, actorID) {
			if err := s.requireApprover(ctx, companyID, actorID, l); err != nil {
				return err
			}
		}

		next := *l
		now := s.now().UTC()
		next.Status = StatusCancelled
		next.CancelledBy = &actor
		next.CancelledAt = &now
		next.UpdatedAt = now

		switch l.Status {
		case StatusPending:
			if err := s.tx.WithinTx(ctx, s.casUpdate(ctx, &next, StatusPending)); err != nil {
				return err
			}
		case StatusApproved:
			_, err := s.ledger.Restore(ctx, companyID, l.EmployeeID.String(), leavetype.LeaveType(l.LeaveType), l.TotalDays, s.casUpdate(ctx, &next, StatusApproved))
			if err != nil {
				return err
			}
		default:
			return leaveerrors.ErrAlreadyProcessed
		}
		out = next
		return nil
	})
	if err != nil {
		return LeaveResponse{}, err
	}

	s.publish(ctx, notification.KindCancelled, out, actorID)
	return mapToResponse(out), nil
}

func (s *service) Delete(ctx context.Context, companyID, actorID, id string) error {
	return s.withRequest(ctx, "delete", companyID, actorID, id, func(l *Leave, _ uuid.UUID) error {
		if err := s.requireApprover(ctx, companyID, actorID, l); err != nil {
			return err
		}

		remove := func(tx *sql.Tx) error {
			ok, err := s.repo.WithTx(tx).Delete(ctx, companyID, id, l.Status)
			if err != nil {
				return err
			}
			if !ok {
				return leaveerrors.ErrAlreadyProcessed
			}
			return nil
		}

		// The balance comes back in the same transaction that drops the row.
		if l.Status == StatusApproved {
			_, err := s.ledger.Restore(ctx, companyID, l.EmployeeID.String(), leavetype.LeaveType(l.LeaveType), l.TotalDays, remove)
			return err
		}
		return s.tx.WithinTx(ctx, remove)
	})
}

// withRequest validates ids, holds the request lock and hands fn a fresh
// read of the row.
func (s *service) withRequest(ctx context.Context, op, companyID, actorID, id string, fn func(l *Leave, actor uuid.UUID) error) error {
	s.logger.Debug("leave transition requested",
		zap.String("op", op),
		zap.String("leave_id", id),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
	)

	if _, err := uuid.Parse(companyID); err != nil {
		return leaveerrors.ErrInvalidCompanyID
	}
	actor, err := uuid.Parse(actorID)
	if err != nil {
		return leaveerrors.ErrInvalidActorID
	}
	if _, err := uuid.Parse(id); err != nil {
		return leaveerrors.ErrInvalidLeaveID
	}

	unlock, err := s.locker.Lock(ctx, keylock.RequestKey(companyID, id))
	if err != nil {
		s.logger.Error("leave request lock failed", zap.String("op", op), zap.Error(err))
		return err
	}
	defer unlock()

	l, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		return mapRepositoryError(err)
	}

	if err := fn(l, actor); err != nil {
		s.logger.Warn("leave transition failed",
			zap.String("op", op),
			zap.String("leave_id", id),
			zap.String("status", l.Status),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("leave transition success",
		zap.String("op", op),
		zap.String("leave_id", id),
		zap.String("from_status", l.Status),
	)
	return nil
}

// casUpdate applies next only if the row is still in from.
func (s *service) casUpdate(ctx context.Context, next *Leave, from string) txn.TxFunc {
	return func(tx *sql.Tx) error {
		ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, next, from)
		if err != nil {
			return err
		}
		if !ok {
			return leaveerrors.ErrAlreadyProcessed
		}
		return nil
	}
}

func (s *service) requireApprover(ctx context.Context, companyID, actorID string, l *Leave) error {
	ok, err := s.approver.CanApprove(ctx, companyID, actorID, l.EmployeeID.String())
	if err != nil {
		return err
	}
	if !ok {
		return leaveerrors.ErrNotAllowed
	}
	return nil
}

func isOwner(l *Leave, actorID string) bool {
	return l.EmployeeID.String() == actorID || l.CreatedBy.String() == actorID
}

func (s *service) publish(ctx context.Context, kind notification.Kind, l Leave, actorID string) {
	reason := l.Reason
	if kind == notification.KindRejected && l.RejectionReason != nil {
		reason = *l.RejectionReason
	}
	s.notifier.Publish(ctx, notification.Event{
		Kind:       kind,
		LeaveID:    l.ID.String(),
		CompanyID:  l.CompanyID.String(),
		EmployeeID: l.EmployeeID.String(),
		LeaveType:  l.LeaveType,
		StartDate:  l.StartDate.Format(dateLayout),
		EndDate:    l.EndDate.Format(dateLayout),
		TotalDays:  l.TotalDays,
		Status:     l.Status,
		ActorID:    actorID,
		Reason:     reason,
		OccurredAt: l.UpdatedAt,
	})
}

type createInput struct {
	companyID  uuid.UUID
	employeeID uuid.UUID
	actorID    uuid.UUID
	leaveType  leavetype.LeaveType
	startDate  time.Time
	endDate    time.Time
}

func validateCreateRequest(companyID, actorID string, req CreateLeaveRequest) (createInput, error) {
	var in createInput
	var err error

	if in.companyID, err = uuid.Parse(companyID); err != nil {
		return in, leaveerrors.ErrInvalidCompanyID
	}
	if in.employeeID, err = uuid.Parse(req.EmployeeID); err != nil {
		return in, leaveerrors.ErrInvalidEmployeeID
	}
	if in.actorID, err = uuid.Parse(actorID); err != nil {
		return in, leaveerrors.ErrInvalidActorID
	}
	t, ok := leavetype.Parse(req.LeaveType)
	if !ok {
		return in, leaveerrors.ErrInvalidLeaveType
	}
	in.leaveType = t
	if in.startDate, err = parseDate(req.StartDate); err != nil {
		return in, err
	}
	if in.endDate, err = parseDate(req.EndDate); err != nil {
		return in, err
	}
	if in.startDate.After(in.endDate) {
		return in, leaveerrors.ErrInvalidDateRange
	}
	return in, nil
}

// spanDays counts calendar days in [start, end]. Both are UTC midnights;
// Duration is avoided since it saturates past about 292 years.
func spanDays(start, end time.Time) int {
	return int((end.Unix()-start.Unix())/86400) + 1
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}

func formatID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}

func mapToResponse(l Leave) LeaveResponse {
	return LeaveResponse{
		ID:              l.ID.String(),
		CompanyID:       l.CompanyID.String(),
		EmployeeID:      l.EmployeeID.String(),
		LeaveType:       l.LeaveType,
		StartDate:       l.StartDate.Format(dateLayout),
		EndDate:         l.EndDate.Format(dateLayout),
		TotalDays:       l.TotalDays,
		Reason:          l.Reason,
		Status:          l.Status,
		CreatedBy:       l.CreatedBy.String(),
		ApprovedBy:      formatID(l.ApprovedBy),
		ApprovedAt:      formatTime(l.ApprovedAt),
		RejectedBy:      formatID(l.RejectedBy),
		RejectedAt:      formatTime(l.RejectedAt),
		RejectionReason: l.RejectionReason,
		CancelledBy:     formatID(l.CancelledBy),
		CancelledAt:     formatTime(l.CancelledAt),
		CreatedAt:       l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}

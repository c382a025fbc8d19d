package leavepolicy

import (
	"context"
	"database/sql"
	"time"

	leavepolicyerrors "go-hris-leave/internal/leavepolicy/errors"
	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/shared/txn"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate mockgen -source=leave_policy_service.go -destination=mock/leave_policy_service_mock.go -package=mock
type Service interface {
	GetOrCreate(ctx context.Context, companyID string) (Policy, error)
	Update(ctx context.Context, companyID, actorID string, quotas map[string]int) (Policy, error)
}

// Updater applies a policy change together with everything that depends on
// it. The HTTP handler talks to this instead of Service.
type Updater interface {
	UpdatePolicy(ctx context.Context, companyID, actorID string, req UpdatePolicyRequest) (PolicyUpdateResponse, error)
}

type service struct {
	tx       txn.Runner
	repo     Repository
	defaults Defaults
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(tx txn.Runner, repo Repository, defaults Defaults, logger ...*zap.Logger) Service {
	l := zap.L().Named("leavepolicy.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavepolicy.service")
	}
	if defaults == nil {
		defaults = DefaultQuotas()
	}
	return &service{tx: tx, repo: repo, defaults: defaults, now: time.Now, logger: l}
}

func (s *service) GetOrCreate(ctx context.Context, companyID string) (Policy, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return Policy{}, leavepolicyerrors.ErrInvalidCompanyID
	}
	return s.getOrCreate(ctx, s.repo, companyUUID)
}

func (s *service) getOrCreate(ctx context.Context, repo Repository, companyID uuid.UUID) (Policy, error) {
	rows, err := repo.FindByCompany(ctx, companyID.String())
	if err != nil {
		s.logger.Error("find policy failed", zap.String("company_id", companyID.String()), zap.Error(err))
		return Policy{}, err
	}

	missing := s.missingDefaults(companyID, rows)
	if len(missing) == 0 {
		return assemble(companyID.String(), rows), nil
	}

	s.logger.Debug("seeding default policy",
		zap.String("company_id", companyID.String()),
		zap.Int("missing_types", len(missing)),
	)
	if err := repo.InsertDefaults(ctx, missing); err != nil {
		s.logger.Error("insert default policy failed", zap.String("company_id", companyID.String()), zap.Error(err))
		return Policy{}, err
	}

	// Re-read: a concurrent caller may have won the insert.
	rows, err = repo.FindByCompany(ctx, companyID.String())
	if err != nil {
		return Policy{}, err
	}
	return assemble(companyID.String(), rows), nil
}

func (s *service) missingDefaults(companyID uuid.UUID, rows []PolicyQuota) []PolicyQuota {
	have := make(map[string]bool, len(rows))
	for _, row := range rows {
		have[row.LeaveType] = true
	}

	now := s.now().UTC()
	var missing []PolicyQuota
	for _, t := range leavetype.All() {
		if have[t.String()] {
			continue
		}
		missing = append(missing, PolicyQuota{
			CompanyID: companyID,
			LeaveType: t.String(),
			Quota:     s.defaults[t],
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return missing
}

func (s *service) Update(ctx context.Context, companyID, actorID string, quotas map[string]int) (Policy, error) {
	s.logger.Debug("update policy requested",
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.Any("quotas", quotas),
	)

	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return Policy{}, leavepolicyerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return Policy{}, leavepolicyerrors.ErrInvalidActorID
	}
	if len(quotas) == 0 {
		return Policy{}, leavepolicyerrors.ErrEmptyQuotas
	}

	parsed := make(map[leavetype.LeaveType]int, len(quotas))
	for raw, quota := range quotas {
		t, ok := leavetype.Parse(raw)
		if !ok {
			s.logger.Warn("update policy invalid leave type", zap.String("leave_type", raw))
			return Policy{}, leavepolicyerrors.ErrInvalidLeaveType
		}
		if quota < 0 {
			s.logger.Warn("update policy negative quota", zap.String("leave_type", raw), zap.Int("quota", quota))
			return Policy{}, leavepolicyerrors.ErrNegativeQuota
		}
		parsed[t] = quota
	}

	now := s.now().UTC()
	rows := make([]PolicyQuota, 0, len(parsed))
	for _, t := range leavetype.All() {
		quota, ok := parsed[t]
		if !ok {
			continue
		}
		rows = append(rows, PolicyQuota{
			CompanyID: companyUUID,
			LeaveType: t.String(),
			Quota:     quota,
			UpdatedBy: &actorUUID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	var updated Policy
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		qrepo := s.repo.WithTx(tx)
		if _, err := s.getOrCreate(ctx, qrepo, companyUUID); err != nil {
			return err
		}
		if err := qrepo.Upsert(ctx, rows); err != nil {
			return err
		}
		found, err := qrepo.FindByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		updated = assemble(companyID, found)
		return nil
	})
	if err != nil {
		s.logger.Error("update policy failed", zap.String("company_id", companyID), zap.Error(err))
		return Policy{}, err
	}

	s.logger.Info("update policy success",
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
	)
	return updated, nil
}

func MapToResponse(p Policy) PolicyResponse {
	resp := PolicyResponse{
		CompanyID: p.CompanyID,
		Quotas:    make(map[string]int, len(p.Quotas)),
	}
	for t, q := range p.Quotas {
		resp.Quotas[t.String()] = q
	}
	if !p.UpdatedAt.IsZero() {
		v := p.UpdatedAt.Format(time.RFC3339)
		resp.UpdatedAt = &v
	}
	if p.UpdatedBy != "" {
		v := p.UpdatedBy
		resp.UpdatedBy = &v
	}
	return resp
}

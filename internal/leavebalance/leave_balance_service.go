package leavebalance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"
	"go-hris-leave/internal/leavepolicy"
	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/shared/keylock"
	"go-hris-leave/internal/shared/txn"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=leave_balance_service.go -destination=mock/leave_balance_service_mock.go -package=mock
type Service interface {
	CheckSufficient(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int) (Availability, error)
	// Deduct and Restore run then inside the ledger transaction, after the
	// balance check and before the balance write.
	Deduct(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (LeaveBalance, error)
	Restore(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (LeaveBalance, error)
	RecomputeOne(ctx context.Context, companyID, employeeID string) ([]LeaveBalance, error)
	RecomputeAll(ctx context.Context, companyID string) (RecomputeSummary, error)
	GetBalance(ctx context.Context, companyID, employeeID string) (EmployeeBalanceResponse, error)
	GetAllBalances(ctx context.Context, companyID string) ([]EmployeeBalanceResponse, error)
}

type PolicyReader interface {
	GetOrCreate(ctx context.Context, companyID string) (leavepolicy.Policy, error)
}

type EmployeeDirectory interface {
	Exists(ctx context.Context, companyID, employeeID string) (bool, error)
	// ListIDs pages employee ids in ascending order after afterID.
	ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error)
}

type Options struct {
	ChunkSize   int
	Parallelism int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 100
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	return o
}

type op int

const (
	opRecompute op = iota
	opDeduct
	opRestore
)

func (o op) String() string {
	switch o {
	case opDeduct:
		return "deduct"
	case opRestore:
		return "restore"
	default:
		return "recompute"
	}
}

type service struct {
	tx        txn.Runner
	repo      Repository
	usage     *UsageAggregator
	policies  PolicyReader
	directory EmployeeDirectory
	locker    keylock.Locker
	opts      Options
	group     singleflight.Group
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(
	tx txn.Runner,
	repo Repository,
	usage UsageRepository,
	policies PolicyReader,
	directory EmployeeDirectory,
	locker keylock.Locker,
	opts Options,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leavebalance.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.service")
	}
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &service{
		tx:        tx,
		repo:      repo,
		usage:     NewUsageAggregator(usage),
		policies:  policies,
		directory: directory,
		locker:    locker,
		opts:      opts.withDefaults(),
		now:       time.Now,
		logger:    l,
	}
}

// derive computes the value to store for one key. It is the only formula
// that produces a balance.
func derive(o op, t leavetype.LeaveType, quota, used, days int) (int, error) {
	available := max(0, quota-used)
	switch o {
	case opDeduct:
		if available < days {
			return 0, leavebalanceerrors.InsufficientBalance(t.String(), available, days)
		}
		return available - days, nil
	case opRestore:
		return min(quota, max(0, quota-(used-days))), nil
	default:
		return available, nil
	}
}

func validateKey(companyID, employeeID string) (uuid.UUID, uuid.UUID, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return uuid.Nil, uuid.Nil, leavebalanceerrors.ErrInvalidCompanyID
	}
	employeeUUID, err := uuid.Parse(employeeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, leavebalanceerrors.ErrInvalidEmployeeID
	}
	return companyUUID, employeeUUID, nil
}

func (s *service) Deduct(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (LeaveBalance, error) {
	return s.mutate(ctx, opDeduct, companyID, employeeID, t, days, then)
}

func (s *service) Restore(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (LeaveBalance, error) {
	return s.mutate(ctx, opRestore, companyID, employeeID, t, days, then)
}

func (s *service) mutate(ctx context.Context, o op, companyID, employeeID string, t leavetype.LeaveType, days int, then txn.TxFunc) (LeaveBalance, error) {
	s.logger.Debug("ledger mutation requested",
		zap.String("op", o.String()),
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.String("leave_type", t.String()),
		zap.Int("days", days),
	)

	companyUUID, employeeUUID, err := validateKey(companyID, employeeID)
	if err != nil {
		return LeaveBalance{}, err
	}
	if !t.Valid() {
		return LeaveBalance{}, leavebalanceerrors.ErrInvalidLeaveType
	}
	if days <= 0 {
		return LeaveBalance{}, leavebalanceerrors.ErrInvalidDays
	}

	unlock, err := s.locker.Lock(ctx, keylock.BalanceKey(companyID, employeeID, t.String()))
	if err != nil {
		s.logger.Error("ledger lock failed", zap.String("op", o.String()), zap.Error(err))
		return LeaveBalance{}, err
	}
	defer unlock()

	policy, err := s.policies.GetOrCreate(ctx, companyID)
	if err != nil {
		return LeaveBalance{}, err
	}

	var out LeaveBalance
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)

		b, err := s.lockRow(ctx, repo, companyUUID, employeeUUID, t)
		if err != nil {
			return err
		}

		usage, err := s.usage.WithTx(tx).UsageFor(ctx, companyID, employeeID)
		if err != nil {
			return err
		}

		remaining, err := derive(o, t, policy.Quota(t), usage.Of(t), days)
		if err != nil {
			return err
		}

		if then != nil {
			if err := then(tx); err != nil {
				return err
			}
		}

		b.Remaining = remaining
		b.RecomputedAt = s.now().UTC()
		if err := repo.Save(ctx, b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		if errors.Is(err, leavebalanceerrors.ErrInsufficientBalance) {
			s.logger.Warn("ledger deduct rejected",
				zap.String("company_id", companyID),
				zap.String("employee_id", employeeID),
				zap.String("leave_type", t.String()),
				zap.Int("days", days),
			)
		} else {
			s.logger.Error("ledger mutation failed", zap.String("op", o.String()), zap.Error(err))
		}
		return LeaveBalance{}, err
	}

	s.logger.Info("ledger mutation success",
		zap.String("op", o.String()),
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.String("leave_type", t.String()),
		zap.Int("remaining", out.Remaining),
	)
	return out, nil
}

// lockRow seeds the key if needed and takes the row lock.
func (s *service) lockRow(ctx context.Context, repo Repository, companyID, employeeID uuid.UUID, t leavetype.LeaveType) (*LeaveBalance, error) {
	seed := &LeaveBalance{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		LeaveType:  t.String(),
	}
	if err := repo.EnsureRow(ctx, seed); err != nil {
		return nil, err
	}
	return repo.FindForUpdate(ctx, companyID.String(), employeeID.String(), t.String())
}

func (s *service) RecomputeOne(ctx context.Context, companyID, employeeID string) ([]LeaveBalance, error) {
	if _, _, err := validateKey(companyID, employeeID); err != nil {
		return nil, err
	}
	exists, err := s.directory.Exists(ctx, companyID, employeeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, leavebalanceerrors.ErrEmployeeNotFound
	}
	return s.recomputeOne(ctx, companyID, employeeID)
}

func (s *service) recomputeOne(ctx context.Context, companyID, employeeID string) ([]LeaveBalance, error) {
	companyUUID, employeeUUID, err := validateKey(companyID, employeeID)
	if err != nil {
		return nil, err
	}

	types := leavetype.All()
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = keylock.BalanceKey(companyID, employeeID, t.String())
	}
	release, err := keylock.LockAll(ctx, s.locker, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	// Read under the keys so the last writer always uses the latest quota.
	policy, err := s.policies.GetOrCreate(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out := make([]LeaveBalance, 0, len(types))
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		out = out[:0]

		usage, err := s.usage.WithTx(tx).UsageFor(ctx, companyID, employeeID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, t := range types {
			b, err := s.lockRow(ctx, repo, companyUUID, employeeUUID, t)
			if err != nil {
				return err
			}
			remaining, _ := derive(opRecompute, t, policy.Quota(t), usage.Of(t), 0)
			b.Remaining = remaining
			b.RecomputedAt = now
			if err := repo.Save(ctx, b); err != nil {
				return err
			}
			out = append(out, *b)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("recompute employee failed",
			zap.String("company_id", companyID),
			zap.String("employee_id", employeeID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("recompute employee success",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
	)
	return out, nil
}

func (s *service) RecomputeAll(ctx context.Context, companyID string) (RecomputeSummary, error) {
	summary := RecomputeSummary{CompanyID: companyID}
	if _, err := uuid.Parse(companyID); err != nil {
		return summary, leavebalanceerrors.ErrInvalidCompanyID
	}

	// Seeds the company's policy once before fanning out.
	if _, err := s.policies.GetOrCreate(ctx, companyID); err != nil {
		return summary, err
	}

	s.logger.Info("recompute all started",
		zap.String("company_id", companyID),
		zap.Int("chunk_size", s.opts.ChunkSize),
		zap.Int("parallelism", s.opts.Parallelism),
	)

	var mu sync.Mutex
	after := ""
	for {
		ids, err := s.directory.ListIDs(ctx, companyID, after, s.opts.ChunkSize)
		if err != nil {
			s.logger.Error("recompute all list employees failed", zap.String("company_id", companyID), zap.Error(err))
			return summary, err
		}
		if len(ids) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.opts.Parallelism)
		for _, id := range ids {
			g.Go(func() error {
				_, err := s.recomputeOne(ctx, companyID, id)

				mu.Lock()
				defer mu.Unlock()
				summary.Employees++
				if err != nil {
					summary.Failures = append(summary.Failures, EmployeeFailure{EmployeeID: id, Err: err})
					return nil
				}
				summary.Recomputed++
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if len(ids) < s.opts.ChunkSize {
			break
		}
		after = ids[len(ids)-1]
	}

	s.logger.Info("recompute all finished",
		zap.String("company_id", companyID),
		zap.Int("employees", summary.Employees),
		zap.Int("recomputed", summary.Recomputed),
		zap.Int("failed", len(summary.Failures)),
	)

	if len(summary.Failures) == 0 {
		return summary, nil
	}
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].EmployeeID < summary.Failures[j].EmployeeID
	})
	errs := make([]error, len(summary.Failures))
	for i, f := range summary.Failures {
		errs[i] = fmt.Errorf("employee %s: %w", f.EmployeeID, f.Err)
	}
	return summary, errors.Join(errs...)
}

func (s *service) CheckSufficient(ctx context.Context, companyID, employeeID string, t leavetype.LeaveType, days int) (Availability, error) {
	if _, _, err := validateKey(companyID, employeeID); err != nil {
		return Availability{}, err
	}
	if !t.Valid() {
		return Availability{}, leavebalanceerrors.ErrInvalidLeaveType
	}
	if days <= 0 {
		return Availability{}, leavebalanceerrors.ErrInvalidDays
	}

	balances, _, err := s.current(ctx, companyID, employeeID)
	if err != nil {
		return Availability{}, err
	}

	available := balances[t]
	return Availability{
		LeaveType:  t.String(),
		Available:  available,
		Requested:  days,
		Sufficient: available >= days,
	}, nil
}

// current returns stored balances per type, repairing them first when a row
// is missing or disagrees with what history says it should be.
func (s *service) current(ctx context.Context, companyID, employeeID string) (map[leavetype.LeaveType]int, map[leavetype.LeaveType]int, error) {
	policy, err := s.policies.GetOrCreate(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	usage, err := s.usage.UsageFor(ctx, companyID, employeeID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.repo.FindByEmployee(ctx, companyID, employeeID)
	if err != nil {
		return nil, nil, err
	}

	stored := make(map[leavetype.LeaveType]int, len(rows))
	for _, row := range rows {
		if t, ok := leavetype.Parse(row.LeaveType); ok {
			stored[t] = row.Remaining
		}
	}

	expected := make(map[leavetype.LeaveType]int, len(leavetype.All()))
	limits := make(map[leavetype.LeaveType]int, len(leavetype.All()))
	drift := false
	for _, t := range leavetype.All() {
		expected[t], _ = derive(opRecompute, t, policy.Quota(t), usage.Of(t), 0)
		limits[t] = policy.Quota(t)
		if got, ok := stored[t]; !ok || got != expected[t] {
			drift = true
		}
	}

	if drift {
		s.logger.Info("balance drift detected, recomputing",
			zap.String("company_id", companyID),
			zap.String("employee_id", employeeID),
		)
		fresh, err := s.recomputeOne(ctx, companyID, employeeID)
		if err != nil {
			return nil, nil, err
		}
		for _, b := range fresh {
			expected[leavetype.LeaveType(b.LeaveType)] = b.Remaining
		}
	}

	return expected, limits, nil
}

func (s *service) GetBalance(ctx context.Context, companyID, employeeID string) (EmployeeBalanceResponse, error) {
	if _, _, err := validateKey(companyID, employeeID); err != nil {
		return EmployeeBalanceResponse{}, err
	}

	exists, err := s.directory.Exists(ctx, companyID, employeeID)
	if err != nil {
		return EmployeeBalanceResponse{}, err
	}
	if !exists {
		return EmployeeBalanceResponse{}, leavebalanceerrors.ErrEmployeeNotFound
	}

	balances, limits, err := s.current(ctx, companyID, employeeID)
	if err != nil {
		return EmployeeBalanceResponse{}, err
	}
	return mapToResponse(employeeID, balances, limits), nil
}

func (s *service) GetAllBalances(ctx context.Context, companyID string) ([]EmployeeBalanceResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, leavebalanceerrors.ErrInvalidCompanyID
	}

	// Concurrent listings for one company share a single recompute pass.
	_, err, _ := s.group.Do(companyID, func() (any, error) {
		return s.RecomputeAll(ctx, companyID)
	})
	if err != nil {
		s.logger.Warn("recompute before listing balances incomplete", zap.String("company_id", companyID), zap.Error(err))
	}

	policy, err := s.policies.GetOrCreate(ctx, companyID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	limits := make(map[leavetype.LeaveType]int, len(leavetype.All()))
	for _, t := range leavetype.All() {
		limits[t] = policy.Quota(t)
	}

	byEmployee := make(map[string]map[leavetype.LeaveType]int)
	var order []string
	for _, row := range rows {
		id := row.EmployeeID.String()
		if _, ok := byEmployee[id]; !ok {
			byEmployee[id] = make(map[leavetype.LeaveType]int)
			order = append(order, id)
		}
		if t, ok := leavetype.Parse(row.LeaveType); ok {
			byEmployee[id][t] = row.Remaining
		}
	}
	sort.Strings(order)

	out := make([]EmployeeBalanceResponse, 0, len(order))
	for _, id := range order {
		out = append(out, mapToResponse(id, byEmployee[id], limits))
	}
	return out, nil
}

func mapToResponse(employeeID string, balances, limits map[leavetype.LeaveType]int) EmployeeBalanceResponse {
	resp := EmployeeBalanceResponse{
		EmployeeID: employeeID,
		Balances:   make(map[string]BalanceItem, len(leavetype.All())),
	}
	for _, t := range leavetype.All() {
		resp.Balances[t.String()] = BalanceItem{Remaining: balances[t], Limit: limits[t]}
	}
	return resp
}

package leavebalance_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-hris-leave/internal/employee"
	"go-hris-leave/internal/leave"
	"go-hris-leave/internal/leavebalance"
	leavebalanceerrors "go-hris-leave/internal/leavebalance/errors"
	"go-hris-leave/internal/leavepolicy"
	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/shared/apperror"
	"go-hris-leave/internal/shared/keylock"
	"go-hris-leave/internal/shared/txn"
	"go-hris-leave/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerHarness struct {
	store      *memory.Store
	policies   leavepolicy.Service
	directory  employee.Directory
	ledger     leavebalance.Service
	companyID  uuid.UUID
	employeeID uuid.UUID
}

func newLedgerHarness(t *testing.T, opts leavebalance.Options) *ledgerHarness {
	t.Helper()
	store := memory.New()
	companyID := uuid.New()
	employeeID := uuid.New()
	store.AddEmployee(employee.Employee{ID: employeeID, CompanyID: companyID, FullName: "Rina", Email: "rina@example.com"})

	policies := leavepolicy.NewService(txn.Nop(), store.Policies(), leavepolicy.DefaultQuotas())
	directory := employee.NewDirectory(store.Employees(), nil)
	ledger := leavebalance.NewService(
		txn.Nop(),
		store.Balances(),
		store.Usage(),
		policies,
		directory,
		keylock.NewLocal(),
		opts,
	)

	return &ledgerHarness{
		store:      store,
		policies:   policies,
		directory:  directory,
		ledger:     ledger,
		companyID:  companyID,
		employeeID: employeeID,
	}
}

func (h *ledgerHarness) addEmployee() uuid.UUID {
	id := uuid.New()
	h.store.AddEmployee(employee.Employee{ID: id, CompanyID: h.companyID, FullName: "Other"})
	return id
}

// history inserts an approved request directly, as the workflow would have.
func (h *ledgerHarness) history(t *testing.T, employeeID uuid.UUID, lt leavetype.LeaveType, days int) *leave.Leave {
	t.Helper()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, len(h.mustLeaves(t))*14)
	l := &leave.Leave{
		ID:         uuid.New(),
		CompanyID:  h.companyID,
		EmployeeID: employeeID,
		LeaveType:  lt.String(),
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, days-1),
		TotalDays:  days,
		Status:     leave.StatusApproved,
		CreatedBy:  employeeID,
	}
	require.NoError(t, h.store.Leaves().Create(context.Background(), l))
	return l
}

func (h *ledgerHarness) mustLeaves(t *testing.T) []leave.Leave {
	t.Helper()
	rows, err := h.store.Leaves().FindAllByCompany(context.Background(), h.companyID.String(), leave.ListFilter{})
	require.NoError(t, err)
	return rows
}

// approveThen returns a TxFunc that records the approved request, like the
// workflow's status update.
func (h *ledgerHarness) approveThen(t *testing.T, employeeID uuid.UUID, lt leavetype.LeaveType, days int, called *bool) txn.TxFunc {
	return func(*sql.Tx) error {
		if called != nil {
			*called = true
		}
		h.history(t, employeeID, lt, days)
		return nil
	}
}

func (h *ledgerHarness) cancelThen(l *leave.Leave) txn.TxFunc {
	return func(*sql.Tx) error {
		next := *l
		next.Status = leave.StatusCancelled
		ok, err := h.store.Leaves().UpdateStatus(context.Background(), &next, leave.StatusApproved)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("not approved")
		}
		return nil
	}
}

func remaining(t *testing.T, h *ledgerHarness, employeeID uuid.UUID, lt leavetype.LeaveType) int {
	t.Helper()
	resp, err := h.ledger.GetBalance(context.Background(), h.companyID.String(), employeeID.String())
	require.NoError(t, err)
	return resp.Balances[lt.String()].Remaining
}

func TestLedger_FreshEmployeeHasFullQuota(t *testing.T) {
	h := newLedgerHarness(t, leavebalance.Options{})

	resp, err := h.ledger.GetBalance(context.Background(), h.companyID.String(), h.employeeID.String())

	assert.NoError(t, err)
	assert.Equal(t, h.employeeID.String(), resp.EmployeeID)
	for _, lt := range leavetype.All() {
		assert.Equal(t, leavebalance.BalanceItem{Remaining: 6, Limit: 6}, resp.Balances[lt.String()])
	}
}

func TestLedger_ApproveInsufficientThenCancelScenario(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	companyID, employeeID := h.companyID.String(), h.employeeID.String()

	avail, err := h.ledger.CheckSufficient(ctx, companyID, employeeID, leavetype.Annual, 5)
	require.NoError(t, err)
	assert.True(t, avail.Sufficient)
	assert.Equal(t, 6, avail.Available)

	b, err := h.ledger.Deduct(ctx, companyID, employeeID, leavetype.Annual, 5, h.approveThen(t, h.employeeID, leavetype.Annual, 5, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Remaining)

	avail, err = h.ledger.CheckSufficient(ctx, companyID, employeeID, leavetype.Annual, 2)
	require.NoError(t, err)
	assert.False(t, avail.Sufficient)
	assert.Equal(t, 1, avail.Available)
	assert.Equal(t, 2, avail.Requested)

	approved := h.mustLeaves(t)[0]
	b, err = h.ledger.Restore(ctx, companyID, employeeID, leavetype.Annual, 5, h.cancelThen(&approved))
	require.NoError(t, err)
	assert.Equal(t, 6, b.Remaining)
	assert.Equal(t, 6, remaining(t, h, h.employeeID, leavetype.Annual))
}

func TestLedger_DeductInsufficientWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})

	called := false
	_, err := h.ledger.Deduct(ctx, h.companyID.String(), h.employeeID.String(), leavetype.Sick, 7, h.approveThen(t, h.employeeID, leavetype.Sick, 7, &called))

	assert.ErrorIs(t, err, leavebalanceerrors.ErrInsufficientBalance)
	assert.False(t, called)
	assert.Empty(t, h.mustLeaves(t))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, leavebalanceerrors.InsufficientDetails{LeaveType: "SICK", Available: 6, Requested: 7}, appErr.Details)
	assert.Equal(t, 6, remaining(t, h, h.employeeID, leavetype.Sick))
}

func TestLedger_FailedThenRollsBackDeduct(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	boom := errors.New("status changed")

	_, err := h.ledger.Deduct(ctx, h.companyID.String(), h.employeeID.String(), leavetype.Annual, 2, func(*sql.Tx) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 6, remaining(t, h, h.employeeID, leavetype.Annual))
}

func TestLedger_RestoreNeverExceedsQuota(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})

	b, err := h.ledger.Restore(ctx, h.companyID.String(), h.employeeID.String(), leavetype.Personal, 4, nil)

	assert.NoError(t, err)
	assert.Equal(t, 6, b.Remaining)
}

func TestLedger_QuotaLoweredBelowUsageClampsToZero(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	h.history(t, h.employeeID, leavetype.Annual, 3)
	assert.Equal(t, 3, remaining(t, h, h.employeeID, leavetype.Annual))

	_, err := h.policies.Update(ctx, h.companyID.String(), uuid.NewString(), map[string]int{"ANNUAL": 2})
	require.NoError(t, err)

	summary, err := h.ledger.RecomputeAll(ctx, h.companyID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Recomputed)

	rows, err := h.store.Balances().FindByEmployee(ctx, h.companyID.String(), h.employeeID.String())
	require.NoError(t, err)
	for _, row := range rows {
		if row.LeaveType == "ANNUAL" {
			assert.Equal(t, 0, row.Remaining)
		}
	}

	resp, err := h.ledger.GetBalance(ctx, h.companyID.String(), h.employeeID.String())
	require.NoError(t, err)
	assert.Equal(t, leavebalance.BalanceItem{Remaining: 0, Limit: 2}, resp.Balances["ANNUAL"])
}

func TestLedger_ConcurrentDeductsOnlyOneAffordable(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	companyID, employeeID := h.companyID.String(), h.employeeID.String()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = h.ledger.Deduct(ctx, companyID, employeeID, leavetype.Annual, 5, h.approveThen(t, h.employeeID, leavetype.Annual, 5, nil))
		}()
	}
	close(start)
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, leavebalanceerrors.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, insufficient)
	assert.Equal(t, 1, remaining(t, h, h.employeeID, leavetype.Annual))
}

func TestLedger_RecomputeAllIsIdempotentAcrossChunks(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{ChunkSize: 2, Parallelism: 3})
	ids := []uuid.UUID{h.employeeID}
	for i := 0; i < 4; i++ {
		ids = append(ids, h.addEmployee())
	}
	for i, id := range ids {
		h.history(t, id, leavetype.Annual, i+1)
	}

	first, err := h.ledger.RecomputeAll(ctx, h.companyID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, first.Employees)
	assert.Equal(t, 5, first.Recomputed)
	snapshot := func() map[string]int {
		rows, err := h.store.Balances().FindByCompany(ctx, h.companyID.String())
		require.NoError(t, err)
		out := make(map[string]int, len(rows))
		for _, row := range rows {
			out[row.EmployeeID.String()+"/"+row.LeaveType] = row.Remaining
		}
		return out
	}
	before := snapshot()

	_, err = h.ledger.RecomputeAll(ctx, h.companyID.String())
	require.NoError(t, err)

	assert.Equal(t, before, snapshot())
	assert.Len(t, before, 5*len(leavetype.All()))
	for i, id := range ids {
		assert.Equal(t, 6-(i+1), before[id.String()+"/ANNUAL"])
	}
}

// brokenDirectory lists one id that cannot be recomputed.
type brokenDirectory struct {
	employee.Directory
	bad string
}

func (d brokenDirectory) ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error) {
	ids, err := d.Directory.ListIDs(ctx, companyID, afterID, limit)
	if err != nil || afterID != "" {
		return ids, err
	}
	return append([]string{d.bad}, ids...), nil
}

func TestLedger_RecomputeAllCollectsFailures(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{ChunkSize: 100})
	h.addEmployee()

	ledger := leavebalance.NewService(
		txn.Nop(),
		h.store.Balances(),
		h.store.Usage(),
		h.policies,
		brokenDirectory{Directory: h.directory, bad: "not-a-uuid"},
		nil,
		leavebalance.Options{},
	)

	summary, err := ledger.RecomputeAll(ctx, h.companyID.String())

	assert.Error(t, err)
	assert.ErrorIs(t, err, leavebalanceerrors.ErrInvalidEmployeeID)
	assert.Contains(t, err.Error(), "employee not-a-uuid")
	assert.Equal(t, 3, summary.Employees)
	assert.Equal(t, 2, summary.Recomputed)
	if assert.Len(t, summary.Failures, 1) {
		assert.Equal(t, "not-a-uuid", summary.Failures[0].EmployeeID)
	}
}

func TestLedger_RecomputeAllStopsOnCancelledContext(t *testing.T) {
	h := newLedgerHarness(t, leavebalance.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ledger.RecomputeAll(ctx, h.companyID.String())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedger_ReadsRepairDrift(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	h.history(t, h.employeeID, leavetype.Sick, 2)

	_, err := h.ledger.RecomputeOne(ctx, h.companyID.String(), h.employeeID.String())
	require.NoError(t, err)

	// Corrupt the cached row behind the ledger's back.
	row, err := h.store.Balances().FindForUpdate(ctx, h.companyID.String(), h.employeeID.String(), "SICK")
	require.NoError(t, err)
	row.Remaining = 0
	require.NoError(t, h.store.Balances().Save(ctx, row))

	avail, err := h.ledger.CheckSufficient(ctx, h.companyID.String(), h.employeeID.String(), leavetype.Sick, 4)
	require.NoError(t, err)
	assert.True(t, avail.Sufficient)
	assert.Equal(t, 4, avail.Available)

	repaired, err := h.store.Balances().FindForUpdate(ctx, h.companyID.String(), h.employeeID.String(), "SICK")
	require.NoError(t, err)
	assert.Equal(t, 4, repaired.Remaining)
}

func TestLedger_ValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	companyID, employeeID := h.companyID.String(), h.employeeID.String()

	_, err := h.ledger.GetBalance(ctx, companyID, uuid.NewString())
	assert.ErrorIs(t, err, leavebalanceerrors.ErrEmployeeNotFound)

	_, err = h.ledger.RecomputeOne(ctx, companyID, uuid.NewString())
	assert.ErrorIs(t, err, leavebalanceerrors.ErrEmployeeNotFound)

	_, err = h.ledger.Deduct(ctx, companyID, employeeID, leavetype.Annual, 0, nil)
	assert.ErrorIs(t, err, leavebalanceerrors.ErrInvalidDays)

	_, err = h.ledger.Deduct(ctx, companyID, employeeID, leavetype.LeaveType("UNPAID"), 1, nil)
	assert.ErrorIs(t, err, leavebalanceerrors.ErrInvalidLeaveType)

	_, err = h.ledger.CheckSufficient(ctx, "bad", employeeID, leavetype.Annual, 1)
	assert.ErrorIs(t, err, leavebalanceerrors.ErrInvalidCompanyID)

	_, err = h.ledger.GetAllBalances(ctx, "bad")
	assert.ErrorIs(t, err, leavebalanceerrors.ErrInvalidCompanyID)
}

func TestLedger_GetAllBalancesListsEveryEmployee(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	other := h.addEmployee()
	h.history(t, other, leavetype.Personal, 6)

	all, err := h.ledger.GetAllBalances(ctx, h.companyID.String())

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].EmployeeID, all[1].EmployeeID)
	for _, resp := range all {
		want := 6
		if resp.EmployeeID == other.String() {
			want = 0
		}
		assert.Equal(t, want, resp.Balances["PERSONAL"].Remaining, fmt.Sprintf("employee %s", resp.EmployeeID))
		assert.Equal(t, 6, resp.Balances["ANNUAL"].Remaining)
	}
}

func TestLedger_BalanceStaysWithinQuota(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t, leavebalance.Options{})
	companyID, employeeID := h.companyID.String(), h.employeeID.String()

	_, err := h.ledger.Deduct(ctx, companyID, employeeID, leavetype.Annual, 2, h.approveThen(t, h.employeeID, leavetype.Annual, 2, nil))
	require.NoError(t, err)
	_, err = h.ledger.Deduct(ctx, companyID, employeeID, leavetype.Annual, 4, h.approveThen(t, h.employeeID, leavetype.Annual, 4, nil))
	require.NoError(t, err)
	_, err = h.policies.Update(ctx, companyID, uuid.NewString(), map[string]int{"ANNUAL": 1, "SICK": 0})
	require.NoError(t, err)
	_, err = h.ledger.RecomputeAll(ctx, companyID)
	require.NoError(t, err)

	resp, err := h.ledger.GetBalance(ctx, companyID, employeeID)
	require.NoError(t, err)
	for lt, item := range resp.Balances {
		assert.GreaterOrEqual(t, item.Remaining, 0, lt)
		assert.LessOrEqual(t, item.Remaining, item.Limit, lt)
	}
}

package memory

import (
	"context"
	"database/sql"
	"sort"

	"go-hris-leave/internal/leave"
	"go-hris-leave/internal/leavebalance"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type balanceRepo struct {
	s *Store
}

func (r *balanceRepo) WithTx(*sql.Tx) leavebalance.Repository { return r }

func (r *balanceRepo) EnsureRow(_ context.Context, b *leavebalance.LeaveBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := balanceKey{companyID: b.CompanyID, employeeID: b.EmployeeID, leaveType: b.LeaveType}
	if _, ok := r.s.balances[key]; ok {
		return nil
	}
	row := *b
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := r.s.now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now
	r.s.balances[key] = row
	return nil
}

func (r *balanceRepo) FindForUpdate(_ context.Context, companyID, employeeID, leaveType string) (*leavebalance.LeaveBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for key, b := range r.s.balances {
		if key.companyID.String() == companyID && key.employeeID.String() == employeeID && key.leaveType == leaveType {
			cp := b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *balanceRepo) FindByEmployee(_ context.Context, companyID, employeeID string) ([]leavebalance.LeaveBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []leavebalance.LeaveBalance
	for key, b := range r.s.balances {
		if key.companyID.String() == companyID && key.employeeID.String() == employeeID {
			rows = append(rows, b)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LeaveType < rows[j].LeaveType })
	return rows, nil
}

func (r *balanceRepo) FindByCompany(_ context.Context, companyID string) ([]leavebalance.LeaveBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []leavebalance.LeaveBalance
	for key, b := range r.s.balances {
		if key.companyID.String() == companyID {
			rows = append(rows, b)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EmployeeID != rows[j].EmployeeID {
			return rows[i].EmployeeID.String() < rows[j].EmployeeID.String()
		}
		return rows[i].LeaveType < rows[j].LeaveType
	})
	return rows, nil
}

func (r *balanceRepo) Save(_ context.Context, b *leavebalance.LeaveBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := balanceKey{companyID: b.CompanyID, employeeID: b.EmployeeID, leaveType: b.LeaveType}
	now := r.s.now().UTC()
	row := *b
	if cur, ok := r.s.balances[key]; ok {
		row.ID = cur.ID
		row.CreatedAt = cur.CreatedAt
	} else if row.ID == uuid.Nil {
		row.ID = uuid.New()
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	r.s.balances[key] = row
	b.UpdatedAt = now
	return nil
}

type usageRepo struct {
	s *Store
}

func (r *usageRepo) WithTx(*sql.Tx) leavebalance.UsageRepository { return r }

func (r *usageRepo) SumApprovedDays(_ context.Context, companyID, employeeID string) ([]leavebalance.UsageRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sums := make(map[string]int)
	for _, l := range r.s.leaves {
		if l.CompanyID.String() == companyID && l.EmployeeID.String() == employeeID && l.Status == leave.StatusApproved {
			sums[l.LeaveType] += l.TotalDays
		}
	}

	rows := make([]leavebalance.UsageRow, 0, len(sums))
	for t, days := range sums {
		rows = append(rows, leavebalance.UsageRow{LeaveType: t, Days: days})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LeaveType < rows[j].LeaveType })
	return rows, nil
}

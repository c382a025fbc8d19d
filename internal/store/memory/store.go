// Package memory is a process-local storage driver. It backs every
// repository of the leave subsystem with maps behind one mutex, so a single
// call is atomic; callers pair it with txn.Nop.
package memory

import (
	"sort"
	"sync"
	"time"

	"go-hris-leave/internal/employee"
	"go-hris-leave/internal/leave"
	"go-hris-leave/internal/leavebalance"
	"go-hris-leave/internal/leavepolicy"
	"go-hris-leave/internal/rbac"

	"github.com/google/uuid"
)

type balanceKey struct {
	companyID  uuid.UUID
	employeeID uuid.UUID
	leaveType  string
}

type policyKey struct {
	companyID uuid.UUID
	leaveType string
}

type Store struct {
	mu        sync.RWMutex
	employees map[uuid.UUID]employee.Employee
	leaves    map[uuid.UUID]leave.Leave
	balances  map[balanceKey]leavebalance.LeaveBalance
	policies  map[policyKey]leavepolicy.PolicyQuota
	roles     map[string][]rbac.EmployeeRoleRow
	grants    map[string][]rbac.RolePermissionRow
	now       func() time.Time
}

func New() *Store {
	return &Store{
		employees: make(map[uuid.UUID]employee.Employee),
		leaves:    make(map[uuid.UUID]leave.Leave),
		balances:  make(map[balanceKey]leavebalance.LeaveBalance),
		policies:  make(map[policyKey]leavepolicy.PolicyQuota),
		roles:     make(map[string][]rbac.EmployeeRoleRow),
		grants:    make(map[string][]rbac.RolePermissionRow),
		now:       time.Now,
	}
}

// AddEmployee registers or replaces a directory entry.
func (s *Store) AddEmployee(e employee.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.UpdatedAt = s.now().UTC()
	s.employees[e.ID] = e
}

func (s *Store) Employees() employee.Repository { return &employeeRepo{s: s} }

func (s *Store) Leaves() leave.Repository { return &leaveRepo{s: s} }

func (s *Store) Balances() leavebalance.Repository { return &balanceRepo{s: s} }

func (s *Store) Usage() leavebalance.UsageRepository { return &usageRepo{s: s} }

func (s *Store) Policies() leavepolicy.Repository { return &policyRepo{s: s} }

func (s *Store) RBAC() rbac.Repository { return &rbacRepo{s: s} }

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

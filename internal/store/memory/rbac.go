package memory

import (
	"context"

	"go-hris-leave/internal/rbac"
)

// AssignRole puts employeeID in roleID within companyID.
func (s *Store) AssignRole(companyID, employeeID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[companyID] = append(s.roles[companyID], rbac.EmployeeRoleRow{EmployeeID: employeeID, RoleID: roleID})
}

// GrantPermission lets roleID perform action on resource within companyID.
func (s *Store) GrantPermission(companyID, roleID, resource, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[companyID] = append(s.grants[companyID], rbac.RolePermissionRow{RoleID: roleID, Resource: resource, Action: action})
}

type rbacRepo struct {
	s *Store
}

func (r *rbacRepo) GetEmployeeRoles(_ context.Context, companyID string) ([]rbac.EmployeeRoleRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]rbac.EmployeeRoleRow(nil), r.s.roles[companyID]...), nil
}

func (r *rbacRepo) GetRolePermissions(_ context.Context, companyID string) ([]rbac.RolePermissionRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]rbac.RolePermissionRow(nil), r.s.grants[companyID]...), nil
}

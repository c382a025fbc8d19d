package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go-hris-leave/internal/employee"

	"github.com/google/uuid"
)

// Seed is the fixture format accepted by LoadSeed.
//
//	{
//	  "employees": [{"id": "...", "company_id": "...", "manager_id": "...", "full_name": "...", "email": "..."}],
//	  "roles": [{"company_id": "...", "role_id": "manager", "employee_ids": ["..."],
//	             "permissions": [{"resource": "leave", "action": "approve"}]}]
//	}
type Seed struct {
	Employees []SeedEmployee `json:"employees"`
	Roles     []SeedRole     `json:"roles"`
}

type SeedEmployee struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	ManagerID string `json:"manager_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
}

type SeedPermission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type SeedRole struct {
	CompanyID   string           `json:"company_id"`
	RoleID      string           `json:"role_id"`
	EmployeeIDs []string         `json:"employee_ids"`
	Permissions []SeedPermission `json:"permissions"`
}

func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("memory: open seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("memory: decode seed: %w", err)
	}

	for i, e := range seed.Employees {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("memory: seed employee %d: invalid id %q", i, e.ID)
		}
		companyID, err := uuid.Parse(e.CompanyID)
		if err != nil {
			return fmt.Errorf("memory: seed employee %d: invalid company_id %q", i, e.CompanyID)
		}
		row := employee.Employee{ID: id, CompanyID: companyID, FullName: e.FullName, Email: e.Email}
		if e.ManagerID != "" {
			managerID, err := uuid.Parse(e.ManagerID)
			if err != nil {
				return fmt.Errorf("memory: seed employee %d: invalid manager_id %q", i, e.ManagerID)
			}
			row.ManagerID = &managerID
		}
		s.AddEmployee(row)
	}

	for _, role := range seed.Roles {
		for _, employeeID := range role.EmployeeIDs {
			s.AssignRole(role.CompanyID, employeeID, role.RoleID)
		}
		for _, p := range role.Permissions {
			s.GrantPermission(role.CompanyID, role.RoleID, p.Resource, p.Action)
		}
	}
	return nil
}

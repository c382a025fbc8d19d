package memory

import (
	"context"
	"sort"

	"go-hris-leave/internal/employee"

	"gorm.io/gorm"
)

type employeeRepo struct {
	s *Store
}

func (r *employeeRepo) FindByIDAndCompany(_ context.Context, companyID, id string) (*employee.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.employees {
		if e.ID.String() == id && e.CompanyID.String() == companyID && !e.DeletedAt.Valid {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *employeeRepo) ListIDs(_ context.Context, companyID, afterID string, limit int) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []string
	for _, e := range r.s.employees {
		id := e.ID.String()
		if e.CompanyID.String() != companyID || e.DeletedAt.Valid || id <= afterID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *employeeRepo) ListCompanyIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, e := range r.s.employees {
		set[e.CompanyID.String()] = struct{}{}
	}
	return sortedStrings(set), nil
}

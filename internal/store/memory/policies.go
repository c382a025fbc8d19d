package memory

import (
	"context"
	"database/sql"
	"sort"

	"go-hris-leave/internal/leavepolicy"
)

type policyRepo struct {
	s *Store
}

func (r *policyRepo) WithTx(*sql.Tx) leavepolicy.Repository { return r }

func (r *policyRepo) FindByCompany(_ context.Context, companyID string) ([]leavepolicy.PolicyQuota, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []leavepolicy.PolicyQuota
	for key, q := range r.s.policies {
		if key.companyID.String() == companyID {
			rows = append(rows, q)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LeaveType < rows[j].LeaveType })
	return rows, nil
}

func (r *policyRepo) InsertDefaults(_ context.Context, rows []leavepolicy.PolicyQuota) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	for _, row := range rows {
		key := policyKey{companyID: row.CompanyID, leaveType: row.LeaveType}
		if _, ok := r.s.policies[key]; ok {
			continue
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		r.s.policies[key] = row
	}
	return nil
}

func (r *policyRepo) Upsert(_ context.Context, rows []leavepolicy.PolicyQuota) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	for _, row := range rows {
		key := policyKey{companyID: row.CompanyID, leaveType: row.LeaveType}
		if cur, ok := r.s.policies[key]; ok {
			row.CreatedAt = cur.CreatedAt
		} else if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		r.s.policies[key] = row
	}
	return nil
}

package memory

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go-hris-leave/internal/leave"

	"gorm.io/gorm"
)

type leaveRepo struct {
	s *Store
}

func (r *leaveRepo) WithTx(*sql.Tx) leave.Repository { return r }

func (r *leaveRepo) Create(_ context.Context, l *leave.Leave) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.leaves[l.ID]; ok {
		return errors.New("memory: duplicate leave id")
	}
	now := r.s.now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	r.s.leaves[l.ID] = *l
	return nil
}

func (r *leaveRepo) FindAllByCompany(_ context.Context, companyID string, filter leave.ListFilter) ([]leave.Leave, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []leave.Leave
	for _, l := range r.s.leaves {
		if l.CompanyID.String() != companyID {
			continue
		}
		if filter.EmployeeID != "" && l.EmployeeID.String() != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *leaveRepo) FindByIDAndCompany(_ context.Context, companyID, id string) (*leave.Leave, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, l := range r.s.leaves {
		if l.ID.String() == id && l.CompanyID.String() == companyID {
			cp := l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *leaveRepo) UpdateStatus(_ context.Context, l *leave.Leave, from string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.leaves[l.ID]
	if !ok || cur.CompanyID != l.CompanyID || cur.Status != from {
		return false, nil
	}
	cur.Status = l.Status
	cur.ApprovedBy = l.ApprovedBy
	cur.ApprovedAt = l.ApprovedAt
	cur.RejectedBy = l.RejectedBy
	cur.RejectedAt = l.RejectedAt
	cur.RejectionReason = l.RejectionReason
	cur.CancelledBy = l.CancelledBy
	cur.CancelledAt = l.CancelledAt
	cur.UpdatedAt = l.UpdatedAt
	r.s.leaves[l.ID] = cur
	return true, nil
}

func (r *leaveRepo) Delete(_ context.Context, companyID, id, from string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for key, l := range r.s.leaves {
		if l.ID.String() == id && l.CompanyID.String() == companyID && l.Status == from {
			delete(r.s.leaves, key)
			return true, nil
		}
	}
	return false, nil
}

func (r *leaveRepo) HasOverlappingPeriod(_ context.Context, companyID, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, l := range r.s.leaves {
		if l.CompanyID.String() != companyID || l.EmployeeID.String() != employeeID {
			continue
		}
		if l.Status != leave.StatusPending && l.Status != leave.StatusApproved {
			continue
		}
		if excludeID != nil && *excludeID != "" && l.ID.String() == *excludeID {
			continue
		}
		if !(l.EndDate.Before(startDate) || l.StartDate.After(endDate)) {
			return true, nil
		}
	}
	return false, nil
}

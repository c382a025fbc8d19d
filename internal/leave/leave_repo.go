package leave

import (
	"context"
	"database/sql"
	"time"

	"go-hris-leave/internal/shared/txn"
	"go-hris-leave/internal/tenant"

	"gorm.io/gorm"
)

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, l *Leave) error
	FindAllByCompany(ctx context.Context, companyID string, filter ListFilter) ([]Leave, error)
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*Leave, error)
	// UpdateStatus writes the status fields of l only while the stored status
	// still equals from, and reports whether it did.
	UpdateStatus(ctx context.Context, l *Leave, from string) (bool, error)
	// Delete removes the row only while its status still equals from.
	Delete(ctx context.Context, companyID, id, from string) (bool, error)
	HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: txn.Bind(r.db, tx)}
}

func (r *repository) Create(ctx context.Context, l *Leave) error {
	return mapRepositoryError(r.db.WithContext(ctx).Create(l).Error)
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string, filter ListFilter) ([]Leave, error) {
	q := r.db.WithContext(ctx).Scopes(tenant.Scope(companyID))
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var leaves []Leave
	err := q.Order("start_date DESC, created_at DESC").Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*Leave, error) {
	var l Leave
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) UpdateStatus(ctx context.Context, l *Leave, from string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Leave{}).
		Where("company_id = ? AND id = ? AND status = ?", l.CompanyID, l.ID, from).
		Updates(map[string]any{
			"status":           l.Status,
			"approved_by":      l.ApprovedBy,
			"approved_at":      l.ApprovedAt,
			"rejected_by":      l.RejectedBy,
			"rejected_at":      l.RejectedAt,
			"rejection_reason": l.RejectionReason,
			"cancelled_by":     l.CancelledBy,
			"cancelled_at":     l.CancelledAt,
			"updated_at":       l.UpdatedAt,
		})
	if res.Error != nil {
		return false, mapRepositoryError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, companyID, id, from string) (bool, error) {
	res := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("status = ?", from).
		Delete(&Leave{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
	db := r.db.WithContext(ctx).
		Model(&Leave{}).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []string{StatusPending, StatusApproved}).
		Where("NOT (end_date < ? OR start_date > ?)", startDate, endDate)

	if excludeID != nil && *excludeID != "" {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}

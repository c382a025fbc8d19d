package leavebalance

import (
	"context"
	"database/sql"
	"time"

	"go-hris-leave/internal/shared/txn"
	"go-hris-leave/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=leave_balance_repo.go -destination=mock/leave_balance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	// EnsureRow inserts a zero balance when the key has none yet.
	EnsureRow(ctx context.Context, b *LeaveBalance) error
	// FindForUpdate row-locks the balance until the surrounding tx ends.
	FindForUpdate(ctx context.Context, companyID, employeeID, leaveType string) (*LeaveBalance, error)
	FindByEmployee(ctx context.Context, companyID, employeeID string) ([]LeaveBalance, error)
	FindByCompany(ctx context.Context, companyID string) ([]LeaveBalance, error)
	Save(ctx context.Context, b *LeaveBalance) error
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

func (r *repository) EnsureRow(ctx context.Context, b *LeaveBalance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "employee_id"}, {Name: "leave_type"}},
			DoNothing: true,
		}).
		Create(b).Error
}

func (r *repository) FindForUpdate(ctx context.Context, companyID, employeeID, leaveType string) (*LeaveBalance, error) {
	var b LeaveBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ? AND leave_type = ?", employeeID, leaveType).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindByEmployee(ctx context.Context, companyID, employeeID string) ([]LeaveBalance, error) {
	var rows []LeaveBalance
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Order("leave_type ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByCompany(ctx context.Context, companyID string) ([]LeaveBalance, error) {
	var rows []LeaveBalance
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("employee_id ASC, leave_type ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, b *LeaveBalance) error {
	b.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "employee_id"}, {Name: "leave_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"remaining", "recomputed_at", "updated_at"}),
		}).
		Create(b).Error
}

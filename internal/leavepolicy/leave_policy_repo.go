package leavepolicy

import (
	"context"
	"database/sql"

	"go-hris-leave/internal/shared/txn"
	"go-hris-leave/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=leave_policy_repo.go -destination=mock/leave_policy_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	FindByCompany(ctx context.Context, companyID string) ([]PolicyQuota, error)
	// InsertDefaults never overwrites an existing row.
	InsertDefaults(ctx context.Context, rows []PolicyQuota) error
	Upsert(ctx context.Context, rows []PolicyQuota) error
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

func (r *repository) FindByCompany(ctx context.Context, companyID string) ([]PolicyQuota, error) {
	var rows []PolicyQuota
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("leave_type ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) InsertDefaults(ctx context.Context, rows []PolicyQuota) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *repository) Upsert(ctx context.Context, rows []PolicyQuota) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "leave_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"quota", "updated_by", "updated_at"}),
		}).
		Create(&rows).Error
}

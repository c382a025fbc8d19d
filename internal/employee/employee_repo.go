package employee

import (
	"context"

	"go-hris-leave/internal/tenant"

	"gorm.io/gorm"
)

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock
type Repository interface {
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*Employee, error)
	ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error)
	ListCompanyIDs(ctx context.Context) ([]string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) ListIDs(ctx context.Context, companyID, afterID string, limit int) ([]string, error) {
	q := r.db.WithContext(ctx).
		Model(&Employee{}).
		Scopes(tenant.Scope(companyID))
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}

	var ids []string
	err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ListCompanyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Employee{}).
		Distinct("company_id").
		Order("company_id ASC").
		Pluck("company_id", &ids).Error
	return ids, err
}

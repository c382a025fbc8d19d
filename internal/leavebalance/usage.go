package leavebalance

import (
	"context"
	"database/sql"

	"go-hris-leave/internal/leavetype"
	"go-hris-leave/internal/shared/txn"

	"gorm.io/gorm"
)

// approvedStatus mirrors the leave request status that consumes balance.
const approvedStatus = "APPROVED"

// Usage is days consumed per leave type. Types without history read as 0.
type Usage map[leavetype.LeaveType]int

func (u Usage) Of(t leavetype.LeaveType) int {
	return u[t]
}

type UsageRow struct {
	LeaveType string
	Days      int
}

//go:generate mockgen -source=usage.go -destination=mock/usage_repo_mock.go -package=mock
type UsageRepository interface {
	WithTx(tx *sql.Tx) UsageRepository
	SumApprovedDays(ctx context.Context, companyID, employeeID string) ([]UsageRow, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository reads straight from the leaves table so usage always
// reflects committed request history.
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) WithTx(tx *sql.Tx) UsageRepository {
	if tx == nil {
		return r
	}
	return &usageRepository{db: txn.Bind(r.db, tx)}
}

func (r *usageRepository) SumApprovedDays(ctx context.Context, companyID, employeeID string) ([]UsageRow, error) {
	var rows []UsageRow
	err := r.db.WithContext(ctx).
		Table("leaves").
		Select("leave_type, COALESCE(SUM(total_days), 0) AS days").
		Where("company_id = ? AND employee_id = ? AND status = ?", companyID, employeeID, approvedStatus).
		Group("leave_type").
		Scan(&rows).Error
	return rows, err
}

type UsageAggregator struct {
	repo UsageRepository
}

func NewUsageAggregator(repo UsageRepository) *UsageAggregator {
	return &UsageAggregator{repo: repo}
}

func (a *UsageAggregator) WithTx(tx *sql.Tx) *UsageAggregator {
	return &UsageAggregator{repo: a.repo.WithTx(tx)}
}

func (a *UsageAggregator) UsageFor(ctx context.Context, companyID, employeeID string) (Usage, error) {
	rows, err := a.repo.SumApprovedDays(ctx, companyID, employeeID)
	if err != nil {
		return nil, err
	}

	usage := make(Usage, len(leavetype.All()))
	for _, t := range leavetype.All() {
		usage[t] = 0
	}
	for _, row := range rows {
		if t, ok := leavetype.Parse(row.LeaveType); ok {
			usage[t] += row.Days
		}
	}
	return usage, nil
}

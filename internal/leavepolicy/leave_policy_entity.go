package leavepolicy

import (
	"time"

	"go-hris-leave/internal/leavetype"

	"github.com/google/uuid"
)

// PolicyQuota is one row per (company, leave type).
type PolicyQuota struct {
	CompanyID uuid.UUID  `gorm:"type:uuid;primaryKey"`
	LeaveType string     `gorm:"type:varchar(30);primaryKey"`
	Quota     int        `gorm:"type:int;not null"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PolicyQuota) TableName() string {
	return "leave_policy_quotas"
}

// Policy is the per-company quota table assembled from its rows.
type Policy struct {
	CompanyID string
	Quotas    map[leavetype.LeaveType]int
	UpdatedAt time.Time
	UpdatedBy string
}

// Quota returns 0 for a type the policy does not carry.
func (p Policy) Quota(t leavetype.LeaveType) int {
	return p.Quotas[t]
}

type Defaults map[leavetype.LeaveType]int

func DefaultQuotas() Defaults {
	return Defaults{
		leavetype.Annual:   6,
		leavetype.Sick:     6,
		leavetype.Personal: 6,
	}
}

func assemble(companyID string, rows []PolicyQuota) Policy {
	p := Policy{CompanyID: companyID, Quotas: make(map[leavetype.LeaveType]int, len(rows))}
	for _, row := range rows {
		p.Quotas[leavetype.LeaveType(row.LeaveType)] = row.Quota
		if row.UpdatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = row.UpdatedAt
			p.UpdatedBy = ""
			if row.UpdatedBy != nil {
				p.UpdatedBy = row.UpdatedBy.String()
			}
		}
	}
	return p
}

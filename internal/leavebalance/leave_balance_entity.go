package leavebalance

import (
	"time"

	"github.com/google/uuid"
)

// LeaveBalance caches quota minus approved usage for one
// (company, employee, leave type). It is rewritten from history on every
// ledger operation and never edited directly.
type LeaveBalance struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balance_key,priority:1"`
	EmployeeID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_balance_key,priority:2"`
	LeaveType    string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_leave_balance_key,priority:3"`
	Remaining    int       `gorm:"type:int;not null;default:0"`
	RecomputedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}

type Availability struct {
	LeaveType  string
	Available  int
	Requested  int
	Sufficient bool
}

type EmployeeFailure struct {
	EmployeeID string
	Err        error
}

type RecomputeSummary struct {
	CompanyID  string
	Employees  int
	Recomputed int
	Failures   []EmployeeFailure
}

package employee

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Employee is the directory row this service reads. The HR core owns writes.
type Employee struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID  `gorm:"type:uuid;index"`
	ManagerID *uuid.UUID `gorm:"type:uuid"`
	FullName  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Info is the cached projection handed to other modules.
type Info struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"company_id"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email"`
	ManagerID *string `json:"manager_id,omitempty"`
}

func toInfo(e Employee) Info {
	info := Info{
		ID:        e.ID.String(),
		CompanyID: e.CompanyID.String(),
		FullName:  e.FullName,
		Email:     e.Email,
	}
	if e.ManagerID != nil {
		v := e.ManagerID.String()
		info.ManagerID = &v
	}
	return info
}

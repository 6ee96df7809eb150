package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MRPRunRunning   = "running"
	MRPRunCompleted = "completed"
	MRPRunFailed    = "failed"
)

// MRPRun is the audit header for one planning run: which horizon it covered,
// how much demand it netted and what it produced. Failed runs keep their
// error message for the planner to inspect.
type MRPRun struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status               string    `gorm:"not null;default:'running'"`
	HorizonDays          int       `gorm:"not null"`
	DemandCount          int       `gorm:"not null;default:0"`
	PlannedOrdersCreated int       `gorm:"not null;default:0"`
	ShortageCount        int       `gorm:"not null;default:0"`
	ErrorMessage         string
	StartedAt            time.Time `gorm:"not null"`
	CompletedAt          *time.Time
	CreatedAt            time.Time
}

// TableName keeps the acronym lowercase in one place.
func (MRPRun) TableName() string { return "mrp_runs" }

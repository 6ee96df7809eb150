package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderTypeMake = "make"
	OrderTypeBuy  = "buy"

	PlannedStatusPlanned   = "planned"
	PlannedStatusFirmed    = "firmed"
	PlannedStatusReleased  = "released"
	PlannedStatusCancelled = "cancelled"
)

// PlannedOrder is a suggested make/buy order covering a net shortage.
// Status is one-way: planned → firmed → released; planned/firmed → cancelled.
// Released and cancelled are terminal.
type PlannedOrder struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderType string          `gorm:"not null"` // make | buy
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	DueDate   time.Time       `gorm:"not null"`
	// StartDate = DueDate − item lead time. When that falls in the past the
	// order is flagged overdue instead of being silently clipped to today.
	StartDate time.Time `gorm:"not null"`
	Overdue   bool      `gorm:"not null;default:false"`
	Status    string    `gorm:"not null;default:'planned';index"`
	// SourceDemandID traces the demand line that triggered this suggestion.
	SourceDemandID *uuid.UUID `gorm:"type:uuid;index"`
	MRPRunID       *uuid.UUID `gorm:"type:uuid;index"`
	// ConvertedToID points at the production order (make) or purchase
	// reference (buy) created on release. Set exactly once — Release is
	// idempotent and returns the existing downstream order on retry.
	ConvertedToID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Production order states. Scheduled is initial; Completed,
// PartiallyCompleted, Failed and Cancelled are terminal.
const (
	ProdStatusScheduled          = "scheduled"
	ProdStatusStarted            = "started"
	ProdStatusPrinted            = "printed"
	ProdStatusQcPending          = "qc_pending"
	ProdStatusCompleted          = "completed"
	ProdStatusPartiallyCompleted = "partially_completed"
	ProdStatusFailed             = "failed"
	ProdStatusCancelled          = "cancelled"
)

// ProductionOrder drives one print job through the fulfillment state machine.
// Reprints are child orders: ParentProductionOrderID links the chain and
// ReprintSequence counts the generation, so a full remake history is
// queryable as one unit.
type ProductionOrder struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuantityOrdered decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	// BomVersion pins the recipe the order was scheduled against; later BOM
	// edits never change an in-flight order's requirements.
	BomVersion int    `gorm:"not null"`
	Status     string `gorm:"not null;default:'scheduled';index"`

	ParentProductionOrderID *uuid.UUID `gorm:"type:uuid;index"`
	ReprintSequence         int        `gorm:"not null;default:0"`

	DemandSourceType string     `gorm:""`
	DemandSourceID   *uuid.UUID `gorm:"type:uuid;index"`

	// ShortageOverride records that Start proceeded despite missing
	// components (explicit operator override of the all-or-nothing rule).
	ShortageOverride bool `gorm:"not null;default:false"`

	// Print outcome, recorded on the Started→Printed transition.
	QtyAttempted      decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	QtyImmediateGood  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	QtyImmediateScrap decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`

	// QC outcome, recorded on the QcPending→terminal transition.
	QtyPassed  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	QtyFailed  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	FailReason string

	StartedAt   *time.Time
	PrintedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

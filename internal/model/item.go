package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item type drives planning behaviour: raw and component items are bought,
// finished items are made (and may themselves appear as components).
const (
	ItemTypeRaw       = "raw"
	ItemTypeComponent = "component"
	ItemTypeFinished  = "finished"
)

// Item is the master record for anything that can be stocked, planned or
// consumed: filament spools, hardware inserts, printed sub-assemblies,
// finished custom parts.
type Item struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU      string    `gorm:"uniqueIndex;not null"`
	Name     string    `gorm:"index;not null"`
	ItemType string    `gorm:"not null;default:'raw'"` // raw | component | finished
	// Assembled marks items that must have an active BOM. Explosion of an
	// assembled item without one is a hard planning error, not a leaf.
	Assembled    bool            `gorm:"not null;default:false"`
	LeadTimeDays int             `gorm:"not null;default:0"`
	MinOrderQty  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	// LotSize, when > 0, rounds suggested order quantities up to a multiple.
	LotSize       decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	ReorderPoint  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	SafetyStock   decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	UnitOfMeasure string          `gorm:"not null;default:'unit'"`
	Active        bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

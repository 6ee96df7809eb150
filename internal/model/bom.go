package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Consumption stages tell the production state machine when a reserved
// component is actually drawn down.
const (
	StageAtPrint      = "at_print"
	StageAtCompletion = "at_completion"
)

// BillOfMaterials is a versioned recipe for one unit of an item.
// At most one version per item is active at a time (partial unique index,
// see infra schema patches).
type BillOfMaterials struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
	Active    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Item  *Item     `gorm:"foreignKey:ItemID"`
	Lines []BomLine `gorm:"foreignKey:BomID"`
}

// TableName overrides GORM's default pluralization (bill_of_materials is
// already plural).
func (BillOfMaterials) TableName() string { return "bill_of_materials" }

// BomLine is one component requirement within a BOM. Position preserves the
// authoring order so explosion output is deterministic.
type BomLine struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BomID           uuid.UUID `gorm:"type:uuid;not null;index"`
	Position        int       `gorm:"not null;default:0"`
	ComponentItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	// QtyPerParent is per one parent unit; ScrapFactor inflates it
	// (0.05 = plan 5% extra for expected process loss).
	QtyPerParent     decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	ScrapFactor      decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0"`
	ConsumptionStage string          `gorm:"not null;default:'at_print'"` // at_print | at_completion
	CreatedAt        time.Time

	ComponentItem *Item `gorm:"foreignKey:ComponentItemID"`
}

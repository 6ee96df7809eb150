package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DemandSourceSales      = "sales_order"
	DemandSourceProduction = "production_order"

	DemandStatusOpen   = "open"
	DemandStatusNetted = "netted"
	DemandStatusClosed = "closed"
)

// DemandRecord is confirmed demand waiting to be planned. Created when a
// sales or production order is confirmed, consumed by the next MRP run.
type DemandRecord struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity   decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	DueDate    time.Time       `gorm:"not null;index"`
	SourceType string          `gorm:"not null"` // sales_order | production_order
	SourceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status     string          `gorm:"not null;default:'open';index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

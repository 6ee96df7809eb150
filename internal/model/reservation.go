package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ReservationActive   = "active"
	ReservationReleased = "released"
	ReservationConsumed = "consumed"
)

// Reservation is the handle returned by LedgerService.Reserve. It is the unit
// of idempotency for consumption: consume/release flip Status exactly once,
// a second call fails instead of double-applying.
type Reservation struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	ReferenceType string          `gorm:"not null;index:idx_res_ref"`
	ReferenceID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_res_ref"`
	Stage         string          `gorm:"index:idx_res_ref"` // at_print | at_completion
	Status        string          `gorm:"not null;default:'active'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

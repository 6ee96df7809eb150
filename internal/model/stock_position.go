package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockPosition is the current quantity state for one item. It is never
// written directly by callers: every change goes through the inventory
// ledger, which appends a LedgerTransaction and applies the delta under the
// item's writer lock. Replaying all transactions for the item from zero must
// reproduce OnHand/Allocated exactly.
//
// Positions are created lazily on the first ledger operation for an item, so
// first-time custom finished goods always have a position to receive into.
type StockPosition struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_item_location"`
	Location  string          `gorm:"not null;default:'main';uniqueIndex:idx_stock_item_location"`
	OnHand    decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	Allocated decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

// Available is the quantity free to promise: on hand minus reservations.
func (p *StockPosition) Available() decimal.Decimal {
	return p.OnHand.Sub(p.Allocated)
}

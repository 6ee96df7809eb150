package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account categories for journal lines.
const (
	AccountRawMaterial   = "raw_material_asset"
	AccountWIP           = "wip_asset"
	AccountFinishedGoods = "finished_goods_asset"
	AccountCOGS          = "cogs_expense"
	AccountScrapExpense  = "scrap_expense"
	AccountPayable       = "payable_liability"
)

// JournalEntry is a balanced double-entry posting derived from one or more
// ledger transactions. Entries are append-only and never edited; corrections
// are reversing entries pointing back via ReversesEntryID.
type JournalEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Description string    `gorm:"not null"`
	// SourceTransactionID links the ledger transaction (or the first of a
	// batch) that produced this entry.
	SourceTransactionID *uuid.UUID `gorm:"type:uuid;index"`
	ReversesEntryID     *uuid.UUID `gorm:"type:uuid;index"`
	PostedAt            time.Time  `gorm:"not null"`
	CreatedAt           time.Time

	Lines []JournalLine `gorm:"foreignKey:EntryID"`
}

// TableName overrides GORM's default pluralization.
func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine is one leg of an entry. Exactly one of Debit/Credit is
// non-zero; the entry's debits and credits must sum equal.
type JournalLine struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Account string          `gorm:"not null;index"`
	Debit   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	Credit  decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	// Optional traceability back to the moving item/order.
	ItemID        *uuid.UUID `gorm:"type:uuid;index"`
	ReferenceType string
	ReferenceID   *uuid.UUID `gorm:"type:uuid"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger transaction types. Reservation/release move Allocated only;
// consumption, receipt, scrap and adjustment move OnHand.
const (
	TxnReservation = "reservation"
	TxnRelease     = "release"
	TxnConsumption = "consumption"
	TxnReceipt     = "receipt"
	TxnScrap       = "scrap"
	TxnAdjustment  = "adjustment"
)

// Reference types tag ledger transactions (and journal lines) back to the
// document that caused them.
const (
	RefProductionOrder = "production_order"
	RefSalesOrder      = "sales_order"
	RefPlannedOrder    = "planned_order"
	RefPurchase        = "purchase"
	RefManual          = "manual"
)

// Closed scrap reason taxonomy. Freeform notes may accompany a reason but
// never replace it.
const (
	ScrapReasonSurfaceFinish = "SRF" // visible surface defect
	ScrapReasonWarping       = "WRP"
	ScrapReasonLayerAdhesion = "LAD"
	ScrapReasonDimensional   = "DIM" // out of dimensional tolerance
	ScrapReasonNozzleClog    = "CLG"
	ScrapReasonOperator      = "OPR" // operator error / handling damage
	ScrapReasonOther         = "OTH"
)

// ScrapReasons is the closed set accepted by the ledger.
var ScrapReasons = map[string]bool{
	ScrapReasonSurfaceFinish: true,
	ScrapReasonWarping:       true,
	ScrapReasonLayerAdhesion: true,
	ScrapReasonDimensional:   true,
	ScrapReasonNozzleClog:    true,
	ScrapReasonOperator:      true,
	ScrapReasonOther:         true,
}

// LedgerTransaction is the append-only record of a single stock mutation.
// Rows are immutable; corrections are new adjustment transactions.
//
// (ReferenceType, ReferenceID, Stage, Type) acts as the idempotency key for
// production transitions: a retried transition finds its own prior
// transactions and skips re-applying them.
type LedgerTransaction struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type   string    `gorm:"not null"`
	// Quantity is the absolute quantity the event concerns. Usually
	// |QuantityDelta|, except WIP scrap where units lost in process never
	// entered on-hand stock and the position delta is zero.
	Quantity decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	// QuantityDelta is the signed effect on the position: positive receipts,
	// negative consumption/scrap. Reservation/release deltas apply to
	// Allocated, all others to OnHand.
	QuantityDelta decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	// OnHandAfter / AllocatedAfter snapshot the position after applying this
	// transaction, so drift is detectable by replay.
	OnHandAfter    decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	AllocatedAfter decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	ReferenceType  string          `gorm:"not null;index:idx_ledger_ref"`
	ReferenceID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_ref"`
	Stage          string          `gorm:"index:idx_ledger_ref"` // at_print | at_completion | "" for non-staged ops
	ReservationID  *uuid.UUID      `gorm:"type:uuid;index"`
	// CostPerUnit is snapshotted at transaction time; item master cost may
	// change later without rewriting history.
	CostPerUnit decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	ScrapReason string
	// Variance records reserved-vs-actual difference on consumption.
	Variance  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	Note      string
	CreatedAt time.Time `gorm:"index"`

	Item *Item `gorm:"foreignKey:ItemID"`
}

// TableName overrides GORM's default pluralization (ledger_transactions reads
// better than ledger_transaction records scattered across migrations).
func (LedgerTransaction) TableName() string { return "ledger_transactions" }

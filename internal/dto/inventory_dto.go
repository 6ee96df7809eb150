package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ReceiveStockRequest struct {
	ItemID        string          `json:"item_id"        validate:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity"       validate:"required,gt=0"`
	ReferenceType string          `json:"reference_type" validate:"required"`
	ReferenceID   string          `json:"reference_id"   validate:"required,uuid"`
	UnitCost      decimal.Decimal `json:"unit_cost"      validate:"min=0"`
}

type ScrapStockRequest struct {
	ItemID        string          `json:"item_id"        validate:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity"       validate:"required,gt=0"`
	ReasonCode    string          `json:"reason_code"    validate:"required"`
	ReferenceType string          `json:"reference_type" validate:"required"`
	ReferenceID   string          `json:"reference_id"   validate:"required,uuid"`
	Origin        string          `json:"origin"         validate:"omitempty,oneof=stock reservation wip"`
	ReservationID *string         `json:"reservation_id" validate:"omitempty,uuid"`
	Note          string          `json:"note"`
}

type ReserveStockRequest struct {
	ItemID        string          `json:"item_id"        validate:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity"       validate:"required,gt=0"`
	ReferenceType string          `json:"reference_type" validate:"required"`
	ReferenceID   string          `json:"reference_id"   validate:"required,uuid"`
	Stage         string          `json:"stage"          validate:"omitempty,oneof=at_print at_completion"`
}

type ConsumeReservationRequest struct {
	ActualQuantity decimal.Decimal `json:"actual_quantity" validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockPositionResponse struct {
	ItemID    string          `json:"item_id"`
	Location  string          `json:"location"`
	OnHand    decimal.Decimal `json:"on_hand"`
	Allocated decimal.Decimal `json:"allocated"`
	Available decimal.Decimal `json:"available"`
}

type LedgerTransactionResponse struct {
	ID             string          `json:"id"`
	ItemID         string          `json:"item_id"`
	Type           string          `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityDelta  decimal.Decimal `json:"quantity_delta"`
	OnHandAfter    decimal.Decimal `json:"on_hand_after"`
	AllocatedAfter decimal.Decimal `json:"allocated_after"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    string          `json:"reference_id"`
	Stage          string          `json:"stage,omitempty"`
	ReservationID  *string         `json:"reservation_id,omitempty"`
	CostPerUnit    decimal.Decimal `json:"cost_per_unit"`
	ScrapReason    string          `json:"scrap_reason,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ReservationResponse struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	Stage         string          `json:"stage,omitempty"`
	Status        string          `json:"status"`
}

type ReplayResponse struct {
	ItemID               string          `json:"item_id"`
	ReplayedOnHand       decimal.Decimal `json:"replayed_on_hand"`
	ReplayedAllocated    decimal.Decimal `json:"replayed_allocated"`
	StoredOnHand         decimal.Decimal `json:"stored_on_hand"`
	StoredAllocated      decimal.Decimal `json:"stored_allocated"`
	Consistent           bool            `json:"consistent"`
	TransactionsReplayed int             `json:"transactions_replayed"`
}

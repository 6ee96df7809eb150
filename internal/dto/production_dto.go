package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductionOrderRequest struct {
	ItemID           string          `json:"item_id"            validate:"required,uuid"`
	Quantity         decimal.Decimal `json:"quantity"           validate:"required,gt=0"`
	DemandSourceType string          `json:"demand_source_type" validate:"omitempty,oneof=sales_order production_order"`
	DemandSourceID   *string         `json:"demand_source_id"   validate:"omitempty,uuid"`
}

type StartProductionRequest struct {
	// ShortageOverride lets an operator start despite missing components;
	// the shortages are recorded on the order.
	ShortageOverride bool `json:"shortage_override"`
}

type CompletePrintRequest struct {
	QtyAttempted      decimal.Decimal `json:"qty_attempted"       validate:"required,gt=0"`
	QtyImmediateGood  decimal.Decimal `json:"qty_immediate_good"  validate:"min=0"`
	QtyImmediateScrap decimal.Decimal `json:"qty_immediate_scrap" validate:"min=0"`
}

type RecordQcRequest struct {
	QtyPassed decimal.Decimal `json:"qty_passed" validate:"min=0"`
	QtyFailed decimal.Decimal `json:"qty_failed" validate:"min=0"`
	// ReasonCode is required when qty_failed > 0.
	ReasonCode   string `json:"reason_code"`
	SpawnReprint *bool  `json:"spawn_reprint"` // default true
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductionOrderResponse struct {
	ID                      string          `json:"id"`
	ItemID                  string          `json:"item_id"`
	QuantityOrdered         decimal.Decimal `json:"quantity_ordered"`
	BomVersion              int             `json:"bom_version"`
	Status                  string          `json:"status"`
	ParentProductionOrderID *string         `json:"parent_production_order_id,omitempty"`
	ReprintSequence         int             `json:"reprint_sequence"`
	DemandSourceType        string          `json:"demand_source_type,omitempty"`
	DemandSourceID          *string         `json:"demand_source_id,omitempty"`
	ShortageOverride        bool            `json:"shortage_override"`
	QtyAttempted            decimal.Decimal `json:"qty_attempted"`
	QtyImmediateGood        decimal.Decimal `json:"qty_immediate_good"`
	QtyImmediateScrap       decimal.Decimal `json:"qty_immediate_scrap"`
	QtyPassed               decimal.Decimal `json:"qty_passed"`
	QtyFailed               decimal.Decimal `json:"qty_failed"`
	FailReason              string          `json:"fail_reason,omitempty"`
	StartedAt               *time.Time      `json:"started_at,omitempty"`
	PrintedAt               *time.Time      `json:"printed_at,omitempty"`
	CompletedAt             *time.Time      `json:"completed_at,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}

type ComponentShortageResponse struct {
	ItemID    string          `json:"item_id"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

type StartProductionResponse struct {
	Order     ProductionOrderResponse     `json:"order"`
	Shortages []ComponentShortageResponse `json:"shortages,omitempty"`
}

type QcResultResponse struct {
	Order   ProductionOrderResponse  `json:"order"`
	Reprint *ProductionOrderResponse `json:"reprint,omitempty"`
}

type ReprintHistoryResponse struct {
	RootID         string                    `json:"root_id"`
	Orders         []ProductionOrderResponse `json:"orders"`
	TotalOrdered   decimal.Decimal           `json:"total_ordered"`
	TotalCompleted decimal.Decimal           `json:"total_completed"`
	TotalScrapped  decimal.Decimal           `json:"total_scrapped"`
	Yield          decimal.Decimal           `json:"yield"`
}

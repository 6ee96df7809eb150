package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateDemandRequest struct {
	ItemID     string          `json:"item_id"     validate:"required,uuid"`
	Quantity   decimal.Decimal `json:"quantity"    validate:"required,gt=0"`
	DueDate    time.Time       `json:"due_date"    validate:"required"`
	SourceType string          `json:"source_type" validate:"required,oneof=sales_order production_order"`
	SourceID   string          `json:"source_id"   validate:"required,uuid"`
}

type RunMRPRequest struct {
	HorizonDays int `json:"horizon_days" validate:"min=0"`
	// Async pushes the run onto the job queue instead of blocking the request.
	Async bool `json:"async"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DemandResponse struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	DueDate    time.Time       `json:"due_date"`
	SourceType string          `json:"source_type"`
	SourceID   string          `json:"source_id"`
	Status     string          `json:"status"`
}

type NetRequirementResponse struct {
	ItemID            string          `json:"item_id"`
	SKU               string          `json:"sku,omitempty"`
	ItemName          string          `json:"item_name,omitempty"`
	GrossRequired     decimal.Decimal `json:"gross_required"`
	Available         decimal.Decimal `json:"available"`
	Incoming          decimal.Decimal `json:"incoming"`
	NetRequired       decimal.Decimal `json:"net_required"`
	SuggestedOrderQty decimal.Decimal `json:"suggested_order_qty"`
	EarliestDueDate   time.Time       `json:"earliest_due_date"`
}

type PlannedOrderResponse struct {
	ID             string          `json:"id"`
	OrderType      string          `json:"order_type"`
	ItemID         string          `json:"item_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	DueDate        time.Time       `json:"due_date"`
	StartDate      time.Time       `json:"start_date"`
	Overdue        bool            `json:"overdue"`
	Status         string          `json:"status"`
	SourceDemandID *string         `json:"source_demand_id,omitempty"`
	MRPRunID       *string         `json:"mrp_run_id,omitempty"`
	ConvertedToID  *string         `json:"converted_to_id,omitempty"`
}

type MRPRunResponse struct {
	ID                   string     `json:"id"`
	Status               string     `json:"status"`
	HorizonDays          int        `json:"horizon_days"`
	DemandCount          int        `json:"demand_count"`
	PlannedOrdersCreated int        `json:"planned_orders_created"`
	ShortageCount        int        `json:"shortage_count"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

type MRPRunResultResponse struct {
	Run           MRPRunResponse           `json:"run"`
	Requirements  []NetRequirementResponse `json:"requirements"`
	PlannedOrders []PlannedOrderResponse   `json:"planned_orders"`
}

type ReleasePlannedOrderResponse struct {
	PlannedOrder    PlannedOrderResponse     `json:"planned_order"`
	ProductionOrder *ProductionOrderResponse `json:"production_order,omitempty"`
	StillRequired   decimal.Decimal          `json:"still_required"`
}

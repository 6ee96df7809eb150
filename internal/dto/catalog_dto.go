package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateItemRequest struct {
	SKU           string          `json:"sku"             validate:"required,min=2,max=64"`
	Name          string          `json:"name"            validate:"required,min=2,max=120"`
	ItemType      string          `json:"item_type"       validate:"required,oneof=raw component finished"`
	Assembled     bool            `json:"assembled"`
	LeadTimeDays  int             `json:"lead_time_days"  validate:"min=0"`
	MinOrderQty   decimal.Decimal `json:"min_order_qty"   validate:"min=0"`
	LotSize       decimal.Decimal `json:"lot_size"        validate:"min=0"`
	ReorderPoint  decimal.Decimal `json:"reorder_point"   validate:"min=0"`
	SafetyStock   decimal.Decimal `json:"safety_stock"    validate:"min=0"`
	UnitCost      decimal.Decimal `json:"unit_cost"       validate:"min=0"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

type UpdateItemRequest = CreateItemRequest

type BomLineRequest struct {
	ComponentItemID  string          `json:"component_item_id" validate:"required,uuid"`
	QtyPerParent     decimal.Decimal `json:"qty_per_parent"    validate:"required,gt=0"`
	ScrapFactor      decimal.Decimal `json:"scrap_factor"      validate:"min=0"`
	ConsumptionStage string          `json:"consumption_stage" validate:"required,oneof=at_print at_completion"`
}

type CreateBomRequest struct {
	Lines []BomLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemResponse struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	ItemType      string          `json:"item_type"`
	Assembled     bool            `json:"assembled"`
	LeadTimeDays  int             `json:"lead_time_days"`
	MinOrderQty   decimal.Decimal `json:"min_order_qty"`
	LotSize       decimal.Decimal `json:"lot_size"`
	ReorderPoint  decimal.Decimal `json:"reorder_point"`
	SafetyStock   decimal.Decimal `json:"safety_stock"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	Active        bool            `json:"active"`
}

type BomLineResponse struct {
	Position         int             `json:"position"`
	ComponentItemID  string          `json:"component_item_id"`
	QtyPerParent     decimal.Decimal `json:"qty_per_parent"`
	ScrapFactor      decimal.Decimal `json:"scrap_factor"`
	ConsumptionStage string          `json:"consumption_stage"`
}

type BomResponse struct {
	ID        string            `json:"id"`
	ItemID    string            `json:"item_id"`
	Version   int               `json:"version"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	Lines     []BomLineResponse `json:"lines"`
}

type ExplosionLineResponse struct {
	ItemID           string          `json:"item_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	Level            int             `json:"level"`
	ParentItemID     string          `json:"parent_item_id"`
	ConsumptionStage string          `json:"consumption_stage"`
}

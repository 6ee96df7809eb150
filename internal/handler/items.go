package handler

import (
	"net/http"

	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ItemsHandler struct{ svc service.ItemService }

func NewItemsHandler(svc service.ItemService) *ItemsHandler {
	return &ItemsHandler{svc: svc}
}

func itemParamsFrom(req dto.CreateItemRequest) service.ItemParams {
	return service.ItemParams{
		SKU:           req.SKU,
		Name:          req.Name,
		ItemType:      req.ItemType,
		Assembled:     req.Assembled,
		LeadTimeDays:  req.LeadTimeDays,
		MinOrderQty:   req.MinOrderQty,
		LotSize:       req.LotSize,
		ReorderPoint:  req.ReorderPoint,
		SafetyStock:   req.SafetyStock,
		UnitCost:      req.UnitCost,
		UnitOfMeasure: req.UnitOfMeasure,
	}
}

func (h *ItemsHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Create(c.Request.Context(), itemParamsFrom(req))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemsHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	item, err := h.svc.Update(c.Request.Context(), id, itemParamsFrom(req))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemsHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ItemsHandler) Deactivate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LowStock lists active items at or under their reorder point.
func (h *ItemsHandler) LowStock(c *gin.Context) {
	items, err := h.svc.LowStock(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	c.JSON(http.StatusOK, out)
}

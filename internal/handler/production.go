package handler

import (
	"net/http"

	"github.com/printertechn/filaops-sub000/internal/apierror"
	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProductionHandler struct{ svc service.ProductionService }

func NewProductionHandler(svc service.ProductionService) *ProductionHandler {
	return &ProductionHandler{svc: svc}
}

func (h *ProductionHandler) Create(c *gin.Context) {
	var req dto.CreateProductionOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	itemID, _ := uuid.Parse(req.ItemID)

	params := service.CreateProductionParams{
		ItemID:           itemID,
		Quantity:         req.Quantity,
		DemandSourceType: req.DemandSourceType,
	}
	if req.DemandSourceID != nil {
		srcID, err := uuid.Parse(*req.DemandSourceID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid demand_source_id"))
			return
		}
		params.DemandSourceID = &srcID
	}

	po, err := h.svc.Create(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductionResponse(po))
}

func (h *ProductionHandler) Start(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.StartProductionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	result, err := h.svc.Start(c.Request.Context(), id, req.ShortageOverride)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StartProductionResponse{
		Order:     toProductionResponse(result.Order),
		Shortages: toShortageResponses(result.Shortages),
	})
}

func (h *ProductionHandler) CompletePrint(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CompletePrintRequest
	if !bindAndValidate(c, &req) {
		return
	}
	po, err := h.svc.CompletePrint(c.Request.Context(), id, service.PrintOutcome{
		Attempted:      req.QtyAttempted,
		ImmediateGood:  req.QtyImmediateGood,
		ImmediateScrap: req.QtyImmediateScrap,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductionResponse(po))
}

func (h *ProductionHandler) SubmitQc(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.SubmitQc(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductionResponse(po))
}

func (h *ProductionHandler) RecordQc(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordQcRequest
	if !bindAndValidate(c, &req) {
		return
	}
	spawn := true
	if req.SpawnReprint != nil {
		spawn = *req.SpawnReprint
	}
	result, err := h.svc.RecordQc(c.Request.Context(), id, service.QcOutcome{
		QtyPassed:    req.QtyPassed,
		QtyFailed:    req.QtyFailed,
		ReasonCode:   req.ReasonCode,
		SpawnReprint: spawn,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := dto.QcResultResponse{Order: toProductionResponse(result.Order)}
	if result.Reprint != nil {
		reprint := toProductionResponse(result.Reprint)
		resp.Reprint = &reprint
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductionHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductionResponse(po))
}

func (h *ProductionHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductionResponse(po))
}

func (h *ProductionHandler) List(c *gin.Context) {
	orders, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.ProductionOrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toProductionResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, out)
}

// ReprintHistory returns the whole remake chain the order belongs to.
func (h *ProductionHandler) ReprintHistory(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	history, err := h.svc.ReprintHistory(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := dto.ReprintHistoryResponse{
		RootID:         history.RootID.String(),
		TotalOrdered:   history.TotalOrdered,
		TotalCompleted: history.TotalCompleted,
		TotalScrapped:  history.TotalScrapped,
		Yield:          history.Yield,
	}
	for i := range history.Orders {
		resp.Orders = append(resp.Orders, toProductionResponse(&history.Orders[i]))
	}
	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/printertechn/filaops-sub000/internal/apierror"
	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlanningEnqueuer pushes a planning run onto the async job queue.
// Implemented by the worker dispatcher.
type PlanningEnqueuer interface {
	EnqueuePlanningRun(ctx context.Context, horizonDays int) error
}

type PlanningHandler struct {
	svc        service.MRPService
	dispatcher PlanningEnqueuer
}

func NewPlanningHandler(svc service.MRPService, dispatcher PlanningEnqueuer) *PlanningHandler {
	return &PlanningHandler{svc: svc, dispatcher: dispatcher}
}

func (h *PlanningHandler) CreateDemand(c *gin.Context) {
	var req dto.CreateDemandRequest
	if !bindAndValidate(c, &req) {
		return
	}
	itemID, _ := uuid.Parse(req.ItemID)
	sourceID, _ := uuid.Parse(req.SourceID)

	d, err := h.svc.CreateDemand(c.Request.Context(), service.CreateDemandParams{
		ItemID:     itemID,
		Quantity:   req.Quantity,
		DueDate:    req.DueDate,
		SourceType: req.SourceType,
		SourceID:   sourceID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDemandResponse(d))
}

func (h *PlanningHandler) CloseDemand(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CloseDemand(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunMRP triggers a planning run. Async mode enqueues the run and returns
// 202; sync mode blocks and returns the full result.
func (h *PlanningHandler) RunMRP(c *gin.Context) {
	var req dto.RunMRPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.Async {
		if h.dispatcher == nil {
			c.JSON(http.StatusServiceUnavailable, apierror.New("async planning is not available"))
			return
		}
		if err := h.dispatcher.EnqueuePlanningRun(c.Request.Context(), req.HorizonDays); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"detail": "planning run enqueued"})
		return
	}

	result, err := h.svc.RunMRP(c.Request.Context(), req.HorizonDays)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResultResponse(result))
}

func toRunResultResponse(result *service.MRPRunResult) dto.MRPRunResultResponse {
	resp := dto.MRPRunResultResponse{Run: toMRPRunResponse(result.Run)}
	for _, n := range result.Requirements {
		resp.Requirements = append(resp.Requirements, toNetRequirementResponse(n))
	}
	for i := range result.PlannedOrders {
		resp.PlannedOrders = append(resp.PlannedOrders, toPlannedOrderResponse(&result.PlannedOrders[i]))
	}
	return resp
}

// MaterialRequirements returns a fresh netting snapshot without creating
// planned orders.
func (h *PlanningHandler) MaterialRequirements(c *gin.Context) {
	nets, err := h.svc.MaterialRequirements(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.NetRequirementResponse, 0, len(nets))
	for _, n := range nets {
		out = append(out, toNetRequirementResponse(n))
	}
	c.JSON(http.StatusOK, out)
}

func (h *PlanningHandler) GetRun(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	run, err := h.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMRPRunResponse(run))
}

func (h *PlanningHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.MRPRunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toMRPRunResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *PlanningHandler) RunOrders(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	orders, err := h.svc.RunOrders(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.PlannedOrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toPlannedOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, out)
}

type PlannedOrdersHandler struct{ svc service.PlannerService }

func NewPlannedOrdersHandler(svc service.PlannerService) *PlannedOrdersHandler {
	return &PlannedOrdersHandler{svc: svc}
}

func (h *PlannedOrdersHandler) List(c *gin.Context) {
	orders, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.PlannedOrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toPlannedOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *PlannedOrdersHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlannedOrderResponse(po))
}

func (h *PlannedOrdersHandler) Firm(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Firm(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlannedOrderResponse(po))
}

// Release converts the planned order into real supply. Safe to retry: a
// second call returns the same downstream order.
func (h *PlannedOrdersHandler) Release(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.svc.Release(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := dto.ReleasePlannedOrderResponse{
		PlannedOrder:  toPlannedOrderResponse(result.PlannedOrder),
		StillRequired: result.StillRequired,
	}
	if result.ProductionOrder != nil {
		prod := toProductionResponse(result.ProductionOrder)
		resp.ProductionOrder = &prod
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PlannedOrdersHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlannedOrderResponse(po))
}

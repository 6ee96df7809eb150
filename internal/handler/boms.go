package handler

import (
	"net/http"
	"strconv"

	"github.com/printertechn/filaops-sub000/internal/apierror"
	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BomsHandler struct {
	svc      service.BomService
	resolver service.BomResolver
}

func NewBomsHandler(svc service.BomService, resolver service.BomResolver) *BomsHandler {
	return &BomsHandler{svc: svc, resolver: resolver}
}

func (h *BomsHandler) CreateVersion(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateBomRequest
	if !bindAndValidate(c, &req) {
		return
	}

	lines := make([]service.BomLineParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		componentID, err := uuid.Parse(l.ComponentItemID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid component_item_id"))
			return
		}
		lines = append(lines, service.BomLineParams{
			ComponentItemID:  componentID,
			QtyPerParent:     l.QtyPerParent,
			ScrapFactor:      l.ScrapFactor,
			ConsumptionStage: l.ConsumptionStage,
		})
	}

	bom, err := h.svc.CreateVersion(c.Request.Context(), itemID, lines)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBomResponse(bom))
}

func (h *BomsHandler) Activate(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, apierror.New("invalid version"))
		return
	}
	if err := h.svc.Activate(c.Request.Context(), itemID, version); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BomsHandler) GetActive(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	bom, err := h.svc.GetActive(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBomResponse(bom))
}

func (h *BomsHandler) ListVersions(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	boms, err := h.svc.ListVersions(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.BomResponse, 0, len(boms))
	for i := range boms {
		out = append(out, toBomResponse(&boms[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Explode previews the full component requirement tree for a quantity
// without reserving anything (?qty=, default 1).
func (h *BomsHandler) Explode(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	qty := decimal.NewFromInt(1)
	if raw := c.Query("qty"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			c.JSON(http.StatusBadRequest, apierror.New("qty must be a positive number"))
			return
		}
		qty = parsed
	}
	reqs, err := h.resolver.Explode(c.Request.Context(), itemID, qty)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExplosionResponse(reqs))
}

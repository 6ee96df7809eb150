package handler

import (
	"net/http"

	"github.com/printertechn/filaops-sub000/internal/apierror"
	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventoryHandler struct{ ledger service.LedgerService }

func NewInventoryHandler(ledger service.LedgerService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

func (h *InventoryHandler) Receive(c *gin.Context) {
	var req dto.ReceiveStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	itemID, _ := uuid.Parse(req.ItemID)
	refID, _ := uuid.Parse(req.ReferenceID)

	txn, err := h.ledger.Receive(c.Request.Context(), service.ReceiveParams{
		ItemID:        itemID,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   refID,
		UnitCost:      req.UnitCost,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(txn))
}

func (h *InventoryHandler) Scrap(c *gin.Context) {
	var req dto.ScrapStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	itemID, _ := uuid.Parse(req.ItemID)
	refID, _ := uuid.Parse(req.ReferenceID)

	params := service.ScrapParams{
		ItemID:        itemID,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   refID,
		ReasonCode:    req.ReasonCode,
		Origin:        req.Origin,
		Note:          req.Note,
	}
	if req.ReservationID != nil {
		resID, err := uuid.Parse(*req.ReservationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid reservation_id"))
			return
		}
		params.ReservationID = &resID
	}

	txn, err := h.ledger.Scrap(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(txn))
}

func (h *InventoryHandler) Reserve(c *gin.Context) {
	var req dto.ReserveStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	itemID, _ := uuid.Parse(req.ItemID)
	refID, _ := uuid.Parse(req.ReferenceID)

	res, err := h.ledger.Reserve(c.Request.Context(), service.ReserveParams{
		ItemID:        itemID,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   refID,
		Stage:         req.Stage,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *InventoryHandler) Release(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.Release(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InventoryHandler) Consume(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ConsumeReservationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	txn, err := h.ledger.Consume(c.Request.Context(), id, req.ActualQuantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(txn))
}

func (h *InventoryHandler) Positions(c *gin.Context) {
	positions, err := h.ledger.ListPositions(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.StockPositionResponse, 0, len(positions))
	for i := range positions {
		out = append(out, toPositionResponse(&positions[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) Position(c *gin.Context) {
	itemID, ok := pathUUID(c, "item_id")
	if !ok {
		return
	}
	pos, err := h.ledger.Position(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPositionResponse(pos))
}

func (h *InventoryHandler) Transactions(c *gin.Context) {
	itemID, ok := pathUUID(c, "item_id")
	if !ok {
		return
	}
	txns, err := h.ledger.Transactions(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.LedgerTransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Replay rebuilds the item's position from the transaction log and reports
// drift against the stored position.
func (h *InventoryHandler) Replay(c *gin.Context) {
	itemID, ok := pathUUID(c, "item_id")
	if !ok {
		return
	}
	result, err := h.ledger.Replay(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReplayResponse(result))
}

// ScrapReasons exposes the closed reason taxonomy so clients don't hardcode it.
func (h *InventoryHandler) ScrapReasons(c *gin.Context) {
	reasons := make([]string, 0, len(model.ScrapReasons))
	for code := range model.ScrapReasons {
		reasons = append(reasons, code)
	}
	c.JSON(http.StatusOK, gin.H{"reason_codes": reasons})
}

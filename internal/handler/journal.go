package handler

import (
	"net/http"
	"strconv"

	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type JournalHandler struct{ svc service.JournalService }

func NewJournalHandler(svc service.JournalService) *JournalHandler {
	return &JournalHandler{svc: svc}
}

func (h *JournalHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.svc.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalEntryResponse(entry))
}

func (h *JournalHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.svc.ListEntries(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.JournalEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toJournalEntryResponse(&entries[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Reverse posts a correcting entry with the legs swapped. The original entry
// is never modified.
func (h *JournalHandler) Reverse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ReverseEntryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	entry, err := h.svc.Reverse(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJournalEntryResponse(entry))
}

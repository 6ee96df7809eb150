package handler

import (
	"github.com/printertechn/filaops-sub000/internal/dto"
	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/google/uuid"
)

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toItemResponse(m *model.Item) dto.ItemResponse {
	return dto.ItemResponse{
		ID:            m.ID.String(),
		SKU:           m.SKU,
		Name:          m.Name,
		ItemType:      m.ItemType,
		Assembled:     m.Assembled,
		LeadTimeDays:  m.LeadTimeDays,
		MinOrderQty:   m.MinOrderQty,
		LotSize:       m.LotSize,
		ReorderPoint:  m.ReorderPoint,
		SafetyStock:   m.SafetyStock,
		UnitCost:      m.UnitCost,
		UnitOfMeasure: m.UnitOfMeasure,
		Active:        m.Active,
	}
}

func toBomResponse(m *model.BillOfMaterials) dto.BomResponse {
	resp := dto.BomResponse{
		ID:        m.ID.String(),
		ItemID:    m.ItemID.String(),
		Version:   m.Version,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
	for _, l := range m.Lines {
		resp.Lines = append(resp.Lines, dto.BomLineResponse{
			Position:         l.Position,
			ComponentItemID:  l.ComponentItemID.String(),
			QtyPerParent:     l.QtyPerParent,
			ScrapFactor:      l.ScrapFactor,
			ConsumptionStage: l.ConsumptionStage,
		})
	}
	return resp
}

func toExplosionResponse(reqs []service.ComponentRequirement) []dto.ExplosionLineResponse {
	out := make([]dto.ExplosionLineResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, dto.ExplosionLineResponse{
			ItemID:           r.ItemID.String(),
			Quantity:         r.Quantity,
			Level:            r.Level,
			ParentItemID:     r.ParentItemID.String(),
			ConsumptionStage: r.ConsumptionStage,
		})
	}
	return out
}

func toPositionResponse(p *model.StockPosition) dto.StockPositionResponse {
	return dto.StockPositionResponse{
		ItemID:    p.ItemID.String(),
		Location:  p.Location,
		OnHand:    p.OnHand,
		Allocated: p.Allocated,
		Available: p.Available(),
	}
}

func toTransactionResponse(t *model.LedgerTransaction) dto.LedgerTransactionResponse {
	return dto.LedgerTransactionResponse{
		ID:             t.ID.String(),
		ItemID:         t.ItemID.String(),
		Type:           t.Type,
		Quantity:       t.Quantity,
		QuantityDelta:  t.QuantityDelta,
		OnHandAfter:    t.OnHandAfter,
		AllocatedAfter: t.AllocatedAfter,
		ReferenceType:  t.ReferenceType,
		ReferenceID:    t.ReferenceID.String(),
		Stage:          t.Stage,
		ReservationID:  uuidPtrString(t.ReservationID),
		CostPerUnit:    t.CostPerUnit,
		ScrapReason:    t.ScrapReason,
		Note:           t.Note,
		CreatedAt:      t.CreatedAt,
	}
}

func toReservationResponse(r *model.Reservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ID:            r.ID.String(),
		ItemID:        r.ItemID.String(),
		Quantity:      r.Quantity,
		ReferenceType: r.ReferenceType,
		ReferenceID:   r.ReferenceID.String(),
		Stage:         r.Stage,
		Status:        r.Status,
	}
}

func toReplayResponse(r *service.ReplayResult) dto.ReplayResponse {
	return dto.ReplayResponse{
		ItemID:               r.ItemID.String(),
		ReplayedOnHand:       r.ReplayedOnHand,
		ReplayedAllocated:    r.ReplayedAllocated,
		StoredOnHand:         r.StoredOnHand,
		StoredAllocated:      r.StoredAllocated,
		Consistent:           r.Consistent,
		TransactionsReplayed: r.TransactionsReplayed,
	}
}

func toProductionResponse(m *model.ProductionOrder) dto.ProductionOrderResponse {
	return dto.ProductionOrderResponse{
		ID:                      m.ID.String(),
		ItemID:                  m.ItemID.String(),
		QuantityOrdered:         m.QuantityOrdered,
		BomVersion:              m.BomVersion,
		Status:                  m.Status,
		ParentProductionOrderID: uuidPtrString(m.ParentProductionOrderID),
		ReprintSequence:         m.ReprintSequence,
		DemandSourceType:        m.DemandSourceType,
		DemandSourceID:          uuidPtrString(m.DemandSourceID),
		ShortageOverride:        m.ShortageOverride,
		QtyAttempted:            m.QtyAttempted,
		QtyImmediateGood:        m.QtyImmediateGood,
		QtyImmediateScrap:       m.QtyImmediateScrap,
		QtyPassed:               m.QtyPassed,
		QtyFailed:               m.QtyFailed,
		FailReason:              m.FailReason,
		StartedAt:               m.StartedAt,
		PrintedAt:               m.PrintedAt,
		CompletedAt:             m.CompletedAt,
		CreatedAt:               m.CreatedAt,
	}
}

func toShortageResponses(shortages []service.ComponentShortage) []dto.ComponentShortageResponse {
	out := make([]dto.ComponentShortageResponse, 0, len(shortages))
	for _, s := range shortages {
		out = append(out, dto.ComponentShortageResponse{
			ItemID:    s.ItemID.String(),
			Required:  s.Required,
			Available: s.Available,
		})
	}
	return out
}

func toDemandResponse(d *model.DemandRecord) dto.DemandResponse {
	return dto.DemandResponse{
		ID:         d.ID.String(),
		ItemID:     d.ItemID.String(),
		Quantity:   d.Quantity,
		DueDate:    d.DueDate,
		SourceType: d.SourceType,
		SourceID:   d.SourceID.String(),
		Status:     d.Status,
	}
}

func toNetRequirementResponse(n service.NetRequirement) dto.NetRequirementResponse {
	resp := dto.NetRequirementResponse{
		ItemID:            n.ItemID.String(),
		GrossRequired:     n.GrossRequired,
		Available:         n.Available,
		Incoming:          n.Incoming,
		NetRequired:       n.NetRequired,
		SuggestedOrderQty: n.SuggestedOrderQty,
		EarliestDueDate:   n.EarliestDueDate,
	}
	if n.Item != nil {
		resp.SKU = n.Item.SKU
		resp.ItemName = n.Item.Name
	}
	return resp
}

func toPlannedOrderResponse(m *model.PlannedOrder) dto.PlannedOrderResponse {
	return dto.PlannedOrderResponse{
		ID:             m.ID.String(),
		OrderType:      m.OrderType,
		ItemID:         m.ItemID.String(),
		Quantity:       m.Quantity,
		DueDate:        m.DueDate,
		StartDate:      m.StartDate,
		Overdue:        m.Overdue,
		Status:         m.Status,
		SourceDemandID: uuidPtrString(m.SourceDemandID),
		MRPRunID:       uuidPtrString(m.MRPRunID),
		ConvertedToID:  uuidPtrString(m.ConvertedToID),
	}
}

func toMRPRunResponse(m *model.MRPRun) dto.MRPRunResponse {
	return dto.MRPRunResponse{
		ID:                   m.ID.String(),
		Status:               m.Status,
		HorizonDays:          m.HorizonDays,
		DemandCount:          m.DemandCount,
		PlannedOrdersCreated: m.PlannedOrdersCreated,
		ShortageCount:        m.ShortageCount,
		ErrorMessage:         m.ErrorMessage,
		StartedAt:            m.StartedAt,
		CompletedAt:          m.CompletedAt,
	}
}

func toJournalEntryResponse(e *model.JournalEntry) dto.JournalEntryResponse {
	resp := dto.JournalEntryResponse{
		ID:                  e.ID.String(),
		Description:         e.Description,
		SourceTransactionID: uuidPtrString(e.SourceTransactionID),
		ReversesEntryID:     uuidPtrString(e.ReversesEntryID),
		PostedAt:            e.PostedAt,
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, dto.JournalLineResponse{
			Account:       l.Account,
			Debit:         l.Debit,
			Credit:        l.Credit,
			ItemID:        uuidPtrString(l.ItemID),
			ReferenceType: l.ReferenceType,
			ReferenceID:   uuidPtrString(l.ReferenceID),
		})
	}
	return resp
}

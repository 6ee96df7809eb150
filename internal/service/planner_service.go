package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printertechn/filaops-sub000/internal/config"
	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReleaseResult is what PlannerService.Release returns: the released planned
// order, the downstream production order for make orders (nil for buy), and
// the shortfall re-validated against the live ledger at release time —
// planning snapshots are best-effort and must not be trusted here.
type ReleaseResult struct {
	PlannedOrder    *model.PlannedOrder
	ProductionOrder *model.ProductionOrder
	StillRequired   decimal.Decimal
}

// PlannerService turns net requirements into lead-time-offset planned orders
// and drives their small status machine:
// planned → firmed → released (one-way, terminal) ; planned/firmed → cancelled.
type PlannerService interface {
	// Generate creates one planned order per net requirement that still has
	// a positive suggested quantity.
	Generate(ctx context.Context, reqs []NetRequirement, runID *uuid.UUID) ([]model.PlannedOrder, error)

	Firm(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error)

	// Release converts the order into real supply. Idempotent: re-invoking
	// on an already-released order returns the existing downstream order
	// instead of creating a duplicate.
	Release(ctx context.Context, id uuid.UUID) (*ReleaseResult, error)

	Cancel(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error)

	Get(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error)
	List(ctx context.Context, status string) ([]model.PlannedOrder, error)
}

type plannerService struct {
	repo     repository.PlannedOrderRepository
	prodRepo repository.ProductionOrderRepository
	bomRepo  repository.BomRepository
	demand   repository.DemandRepository
	ledger   repository.LedgerRepository
	planning config.PlanningConfig
}

func NewPlannerService(
	repo repository.PlannedOrderRepository,
	prodRepo repository.ProductionOrderRepository,
	bomRepo repository.BomRepository,
	demand repository.DemandRepository,
	ledger repository.LedgerRepository,
	planning config.PlanningConfig,
) PlannerService {
	return &plannerService{
		repo:     repo,
		prodRepo: prodRepo,
		bomRepo:  bomRepo,
		demand:   demand,
		ledger:   ledger,
		planning: planning,
	}
}

func (s *plannerService) Generate(ctx context.Context, reqs []NetRequirement, runID *uuid.UUID) ([]model.PlannedOrder, error) {
	today := startOfDay(time.Now())

	var orders []model.PlannedOrder
	for _, req := range reqs {
		if !req.SuggestedOrderQty.IsPositive() {
			continue
		}

		// make when the item has an active BOM, buy otherwise.
		orderType := model.OrderTypeBuy
		if _, err := s.bomRepo.FindActiveByItemID(ctx, req.ItemID); err == nil {
			orderType = model.OrderTypeMake
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		leadDays := s.planning.DefaultLeadTimeDays
		if req.Item != nil && req.Item.LeadTimeDays > 0 {
			leadDays = req.Item.LeadTimeDays
		}

		due := req.EarliestDueDate
		start := due.AddDate(0, 0, -leadDays)
		// A start date in the past is flagged, never silently clipped.
		overdue := start.Before(today)

		var sourceDemand *uuid.UUID
		if len(req.SourceDemandIDs) > 0 {
			id := req.SourceDemandIDs[0]
			sourceDemand = &id
		}

		orders = append(orders, model.PlannedOrder{
			ID:             uuid.New(),
			OrderType:      orderType,
			ItemID:         req.ItemID,
			Quantity:       req.SuggestedOrderQty,
			DueDate:        due,
			StartDate:      start,
			Overdue:        overdue,
			Status:         model.PlannedStatusPlanned,
			SourceDemandID: sourceDemand,
			MRPRunID:       runID,
		})
	}

	if len(orders) == 0 {
		return nil, nil
	}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateBatchTx(tx, orders)
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *plannerService) Firm(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error) {
	rows, err := s.repo.UpdateStatusCAS(ctx, id, model.PlannedStatusPlanned, model.PlannedStatusFirmed)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		po, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if po.Status == model.PlannedStatusFirmed {
			return po, nil // retried firm is a no-op
		}
		return nil, &StaleStateError{OrderID: id, Expected: model.PlannedStatusPlanned, Observed: po.Status}
	}
	return s.repo.FindByID(ctx, id)
}

func (s *plannerService) Release(ctx context.Context, id uuid.UUID) (*ReleaseResult, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("planned order %s not found: %w", id, err)
	}

	switch po.Status {
	case model.PlannedStatusCancelled:
		return nil, &InvalidTransitionError{OrderID: id, From: po.Status, To: model.PlannedStatusReleased}
	case model.PlannedStatusReleased:
		// Retry of an already-released order: hand back the existing
		// downstream order, never a duplicate.
		return s.existingRelease(ctx, po)
	}

	still, err := s.revalidateRequirement(ctx, po)
	if err != nil {
		return nil, err
	}
	if still.IsZero() {
		log.Info().
			Str("planned_order_id", id.String()).
			Msg("supply now covers this requirement; releasing anyway on planner request")
	}

	result := &ReleaseResult{StillRequired: still}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(ctx, id, po.Status, model.PlannedStatusReleased)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: id, Expected: po.Status, Observed: "changed"}
		}

		if po.OrderType == model.OrderTypeMake {
			prod, err := s.buildProductionOrder(ctx, po)
			if err != nil {
				return err
			}
			if err := s.prodRepo.CreateTx(tx, prod); err != nil {
				return err
			}
			if _, err := s.repo.SetConvertedTx(tx, id, prod.ID); err != nil {
				return err
			}
			result.ProductionOrder = prod
		}
		return nil
	})
	if err != nil {
		// Lost a race with a concurrent release: surface the winner's result.
		var stale *StaleStateError
		if errors.As(err, &stale) {
			fresh, ferr := s.repo.FindByID(ctx, id)
			if ferr == nil && fresh.Status == model.PlannedStatusReleased {
				return s.existingRelease(ctx, fresh)
			}
		}
		return nil, err
	}

	po, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result.PlannedOrder = po

	log.Info().
		Str("planned_order_id", id.String()).
		Str("order_type", po.OrderType).
		Msg("planned order released")
	return result, nil
}

func (s *plannerService) existingRelease(ctx context.Context, po *model.PlannedOrder) (*ReleaseResult, error) {
	result := &ReleaseResult{PlannedOrder: po}
	if po.ConvertedToID != nil {
		prod, err := s.prodRepo.FindByID(ctx, *po.ConvertedToID)
		if err != nil {
			return nil, fmt.Errorf("downstream order %s missing: %w", *po.ConvertedToID, err)
		}
		result.ProductionOrder = prod
	}
	return result, nil
}

// revalidateRequirement recomputes the shortfall against the live position.
// The MRP snapshot this order came from may be minutes or days old.
func (s *plannerService) revalidateRequirement(ctx context.Context, po *model.PlannedOrder) (decimal.Decimal, error) {
	available := decimal.Zero
	pos, err := s.ledger.FindPosition(ctx, po.ItemID)
	switch {
	case err == nil:
		if a := pos.Available(); a.IsPositive() {
			available = a
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return decimal.Zero, err
	}

	still := po.Quantity.Sub(available)
	if still.IsNegative() {
		still = decimal.Zero
	}
	return still, nil
}

func (s *plannerService) buildProductionOrder(ctx context.Context, po *model.PlannedOrder) (*model.ProductionOrder, error) {
	bom, err := s.bomRepo.FindActiveByItemID(ctx, po.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &MissingBomError{ItemID: po.ItemID}
		}
		return nil, err
	}

	prod := &model.ProductionOrder{
		ID:              uuid.New(),
		ItemID:          po.ItemID,
		QuantityOrdered: po.Quantity,
		BomVersion:      bom.Version,
		Status:          model.ProdStatusScheduled,
	}
	if po.SourceDemandID != nil {
		if d, err := s.demand.FindByID(ctx, *po.SourceDemandID); err == nil {
			prod.DemandSourceType = d.SourceType
			srcID := d.SourceID
			prod.DemandSourceID = &srcID
		}
	}
	return prod, nil
}

func (s *plannerService) Cancel(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch po.Status {
	case model.PlannedStatusReleased, model.PlannedStatusCancelled:
		return nil, &InvalidTransitionError{OrderID: id, From: po.Status, To: model.PlannedStatusCancelled}
	}
	rows, err := s.repo.UpdateStatusCAS(ctx, id, po.Status, model.PlannedStatusCancelled)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, &StaleStateError{OrderID: id, Expected: po.Status, Observed: "changed"}
	}
	return s.repo.FindByID(ctx, id)
}

func (s *plannerService) Get(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *plannerService) List(ctx context.Context, status string) ([]model.PlannedOrder, error) {
	return s.repo.List(ctx, status)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

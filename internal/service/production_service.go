package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ComponentShortage is one under-covered component discovered when starting
// an order.
type ComponentShortage struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

// ComponentShortageError aborts Start when components are missing and no
// override was given. By the time it is returned every reservation taken in
// the failing call has been released again.
type ComponentShortageError struct {
	OrderID   uuid.UUID
	Shortages []ComponentShortage
}

func (e *ComponentShortageError) Error() string {
	return fmt.Sprintf("production order %s: %d component(s) short", e.OrderID, len(e.Shortages))
}

// CreateProductionParams describes a directly scheduled print job (demand
// reference optional; planner-released orders carry theirs automatically).
type CreateProductionParams struct {
	ItemID           uuid.UUID
	Quantity         decimal.Decimal
	DemandSourceType string
	DemandSourceID   *uuid.UUID
}

// PrintOutcome is recorded on the started → printed transition.
// ImmediateGood + ImmediateScrap must account for every attempted unit.
type PrintOutcome struct {
	Attempted      decimal.Decimal
	ImmediateGood  decimal.Decimal
	ImmediateScrap decimal.Decimal
}

// QcOutcome is recorded on the qc_pending → terminal transition. Failed units
// need a reason code from the closed scrap taxonomy. SpawnReprint controls
// whether a child order is cut for the shortfall.
type QcOutcome struct {
	QtyPassed    decimal.Decimal
	QtyFailed    decimal.Decimal
	ReasonCode   string
	SpawnReprint bool
}

// StartResult reports what Start reserved and, under override, what it could
// not.
type StartResult struct {
	Order     *model.ProductionOrder
	Shortages []ComponentShortage
}

// QcResult is the outcome of recording quality control: the terminal order
// plus the reprint child when one was spawned.
type QcResult struct {
	Order   *model.ProductionOrder
	Reprint *model.ProductionOrder
}

// ReprintHistory is a whole remake chain viewed as one unit.
type ReprintHistory struct {
	RootID         uuid.UUID
	Orders         []model.ProductionOrder
	TotalOrdered   decimal.Decimal
	TotalCompleted decimal.Decimal
	TotalScrapped  decimal.Decimal
	// Yield is completed units over the root order quantity.
	Yield decimal.Decimal
}

// ProductionService drives print jobs through
// scheduled → started → printed → qc_pending → terminal, with cancellation
// from any pre-terminal state. Every transition is a compare-and-swap on
// status, and every transition's ledger work is idempotent, so a retried
// request never double-applies stock effects.
type ProductionService interface {
	Create(ctx context.Context, p CreateProductionParams) (*model.ProductionOrder, error)

	// Start reserves every exploded component requirement. All-or-nothing
	// unless override: with override, shortages are recorded on the order and
	// the covered components are still reserved.
	Start(ctx context.Context, orderID uuid.UUID, override bool) (*StartResult, error)

	// CompletePrint records the print outcome and consumes the at_print
	// reservations.
	CompletePrint(ctx context.Context, orderID uuid.UUID, outcome PrintOutcome) (*model.ProductionOrder, error)

	// SubmitQc hands the printed batch to quality control. No ledger effect.
	SubmitQc(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error)

	// RecordQc settles the order: consumes at_completion reservations,
	// receives passed units into finished goods, scraps the failed shortfall
	// as process loss, and spawns the reprint child where policy says so.
	RecordQc(ctx context.Context, orderID uuid.UUID, outcome QcOutcome) (*QcResult, error)

	// Cancel releases whatever is still reserved and never touches material
	// already consumed.
	Cancel(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error)

	ReprintHistory(ctx context.Context, orderID uuid.UUID) (*ReprintHistory, error)

	Get(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error)
	List(ctx context.Context, status string) ([]model.ProductionOrder, error)
}

type productionService struct {
	repo     repository.ProductionOrderRepository
	bomRepo  repository.BomRepository
	demand   repository.DemandRepository
	resolver BomResolver
	ledger   LedgerService
}

func NewProductionService(
	repo repository.ProductionOrderRepository,
	bomRepo repository.BomRepository,
	demand repository.DemandRepository,
	resolver BomResolver,
	ledger LedgerService,
) ProductionService {
	return &productionService{
		repo:     repo,
		bomRepo:  bomRepo,
		demand:   demand,
		resolver: resolver,
		ledger:   ledger,
	}
}

func (s *productionService) Create(ctx context.Context, p CreateProductionParams) (*model.ProductionOrder, error) {
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("order quantity must be positive, got %s", p.Quantity)
	}
	bom, err := s.bomRepo.FindActiveByItemID(ctx, p.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &MissingBomError{ItemID: p.ItemID}
		}
		return nil, err
	}

	po := &model.ProductionOrder{
		ID:               uuid.New(),
		ItemID:           p.ItemID,
		QuantityOrdered:  p.Quantity,
		BomVersion:       bom.Version,
		Status:           model.ProdStatusScheduled,
		DemandSourceType: p.DemandSourceType,
		DemandSourceID:   p.DemandSourceID,
	}
	if err := s.repo.Create(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *productionService) Start(ctx context.Context, orderID uuid.UUID, override bool) (*StartResult, error) {
	po, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	if po.Status != model.ProdStatusScheduled {
		return nil, &InvalidTransitionError{OrderID: orderID, From: po.Status, To: model.ProdStatusStarted}
	}

	reqs, err := s.resolver.ExplodeVersion(ctx, po.ItemID, po.BomVersion, po.QuantityOrdered)
	if err != nil {
		return nil, err
	}

	// A retried Start may have left reservations behind; skip what already
	// holds instead of reserving twice.
	held, err := s.ledger.ActiveReservations(ctx, model.RefProductionOrder, orderID)
	if err != nil {
		return nil, err
	}
	alreadyHeld := make(map[string]bool, len(held))
	for _, r := range held {
		alreadyHeld[r.ItemID.String()+"/"+r.Stage] = true
	}

	var (
		taken     []uuid.UUID
		shortages []ComponentShortage
	)
	rollback := func() {
		for _, id := range taken {
			if rerr := s.ledger.Release(ctx, id); rerr != nil {
				log.Error().Err(rerr).
					Str("reservation_id", id.String()).
					Msg("rollback release failed")
			}
		}
	}

	for _, req := range reqs {
		if alreadyHeld[req.ItemID.String()+"/"+req.ConsumptionStage] {
			continue
		}
		res, err := s.ledger.Reserve(ctx, ReserveParams{
			ItemID:        req.ItemID,
			Quantity:      req.Quantity,
			ReferenceType: model.RefProductionOrder,
			ReferenceID:   orderID,
			Stage:         req.ConsumptionStage,
		})
		if err != nil {
			var short *InsufficientStockError
			if errors.As(err, &short) {
				shortages = append(shortages, ComponentShortage{
					ItemID:    short.ItemID,
					Required:  short.Requested,
					Available: short.Available,
				})
				if override {
					continue
				}
				// All-or-nothing: keep reserving nothing, but walk the rest of
				// the BOM so the caller sees the complete shortage list.
				continue
			}
			rollback()
			return nil, err
		}
		taken = append(taken, res.ID)
	}

	if len(shortages) > 0 && !override {
		rollback()
		return nil, &ComponentShortageError{OrderID: orderID, Shortages: shortages}
	}

	now := time.Now()
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(tx, orderID, model.ProdStatusScheduled, model.ProdStatusStarted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: orderID, Expected: model.ProdStatusScheduled, Observed: "changed"}
		}
		return s.repo.UpdateFieldsTx(tx, orderID, map[string]interface{}{
			"started_at":        now,
			"shortage_override": len(shortages) > 0,
		})
	})
	if err != nil {
		rollback()
		return nil, err
	}

	po, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("production_order_id", orderID.String()).
		Int("reservations", len(taken)).
		Int("shortages", len(shortages)).
		Bool("override", override).
		Msg("production order started")
	return &StartResult{Order: po, Shortages: shortages}, nil
}

func (s *productionService) CompletePrint(ctx context.Context, orderID uuid.UUID, outcome PrintOutcome) (*model.ProductionOrder, error) {
	po, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	if po.Status != model.ProdStatusStarted {
		return nil, &InvalidTransitionError{OrderID: orderID, From: po.Status, To: model.ProdStatusPrinted}
	}
	if !outcome.Attempted.IsPositive() {
		return nil, fmt.Errorf("attempted quantity must be positive, got %s", outcome.Attempted)
	}
	if !outcome.ImmediateGood.Add(outcome.ImmediateScrap).Equal(outcome.Attempted) {
		return nil, fmt.Errorf("immediate good %s + scrap %s must equal attempted %s",
			outcome.ImmediateGood, outcome.ImmediateScrap, outcome.Attempted)
	}

	if err := s.consumeStage(ctx, orderID, model.StageAtPrint); err != nil {
		return nil, err
	}

	now := time.Now()
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(tx, orderID, model.ProdStatusStarted, model.ProdStatusPrinted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: orderID, Expected: model.ProdStatusStarted, Observed: "changed"}
		}
		return s.repo.UpdateFieldsTx(tx, orderID, map[string]interface{}{
			"qty_attempted":       outcome.Attempted,
			"qty_immediate_good":  outcome.ImmediateGood,
			"qty_immediate_scrap": outcome.ImmediateScrap,
			"printed_at":          now,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *productionService) SubmitQc(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error) {
	po, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	if po.Status != model.ProdStatusPrinted {
		return nil, &InvalidTransitionError{OrderID: orderID, From: po.Status, To: model.ProdStatusQcPending}
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(tx, orderID, model.ProdStatusPrinted, model.ProdStatusQcPending)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: orderID, Expected: model.ProdStatusPrinted, Observed: "changed"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *productionService) RecordQc(ctx context.Context, orderID uuid.UUID, outcome QcOutcome) (*QcResult, error) {
	po, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	if po.Status != model.ProdStatusQcPending {
		return nil, &InvalidTransitionError{OrderID: orderID, From: po.Status, To: "terminal"}
	}

	submitted := po.QtyImmediateGood
	if !submitted.IsPositive() {
		submitted = po.QuantityOrdered
	}
	if outcome.QtyPassed.IsNegative() || outcome.QtyFailed.IsNegative() {
		return nil, fmt.Errorf("qc quantities cannot be negative")
	}
	if !outcome.QtyPassed.Add(outcome.QtyFailed).Equal(submitted) {
		return nil, fmt.Errorf("passed %s + failed %s must equal submitted %s",
			outcome.QtyPassed, outcome.QtyFailed, submitted)
	}
	if outcome.QtyFailed.IsPositive() && !model.ScrapReasons[outcome.ReasonCode] {
		return nil, fmt.Errorf("failed units require a valid reason code, got %q", outcome.ReasonCode)
	}

	if err := s.consumeStage(ctx, orderID, model.StageAtCompletion); err != nil {
		return nil, err
	}

	// Passed units enter finished goods; once per order even across retries.
	// ApplyOnce runs the duplicate check under the item's writer lock, so two
	// racing settlements cannot both book the receipt.
	if outcome.QtyPassed.IsPositive() {
		if _, err := s.ledger.Receive(ctx, ReceiveParams{
			ItemID:        po.ItemID,
			Quantity:      outcome.QtyPassed,
			ReferenceType: model.RefProductionOrder,
			ReferenceID:   orderID,
			ApplyOnce:     true,
		}); err != nil {
			return nil, err
		}
	}

	// Failed units never entered stock: process loss, journal only.
	if outcome.QtyFailed.IsPositive() {
		if _, err := s.ledger.Scrap(ctx, ScrapParams{
			ItemID:        po.ItemID,
			Quantity:      outcome.QtyFailed,
			ReferenceType: model.RefProductionOrder,
			ReferenceID:   orderID,
			ReasonCode:    outcome.ReasonCode,
			Origin:        ScrapFromWIP,
			ApplyOnce:     true,
		}); err != nil {
			return nil, err
		}
	}

	terminal := model.ProdStatusCompleted
	switch {
	case outcome.QtyPassed.IsZero():
		terminal = model.ProdStatusFailed
	case outcome.QtyFailed.IsPositive():
		terminal = model.ProdStatusPartiallyCompleted
	}

	reprint, err := s.maybeReprint(ctx, po, outcome, terminal)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(tx, orderID, model.ProdStatusQcPending, terminal)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: orderID, Expected: model.ProdStatusQcPending, Observed: "changed"}
		}
		fields := map[string]interface{}{
			"qty_passed":   outcome.QtyPassed,
			"qty_failed":   outcome.QtyFailed,
			"completed_at": now,
		}
		if outcome.QtyFailed.IsPositive() {
			fields["fail_reason"] = outcome.ReasonCode
		}
		if err := s.repo.UpdateFieldsTx(tx, orderID, fields); err != nil {
			return err
		}
		if reprint != nil {
			return s.repo.CreateTx(tx, reprint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	po, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("production_order_id", orderID.String()).
		Str("terminal_status", terminal).
		Str("qty_passed", outcome.QtyPassed.String()).
		Str("qty_failed", outcome.QtyFailed.String()).
		Bool("reprint_spawned", reprint != nil).
		Msg("quality control recorded")
	return &QcResult{Order: po, Reprint: reprint}, nil
}

// maybeReprint builds (without persisting) the child order covering the QC
// shortfall. Partial completion reprints on request; full failure reprints
// only while the originating demand is still open.
func (s *productionService) maybeReprint(ctx context.Context, po *model.ProductionOrder, outcome QcOutcome, terminal string) (*model.ProductionOrder, error) {
	if !outcome.SpawnReprint || !outcome.QtyFailed.IsPositive() {
		return nil, nil
	}
	if terminal == model.ProdStatusFailed {
		if po.DemandSourceID == nil {
			return nil, nil
		}
		if _, err := s.demand.FindOpenBySource(ctx, po.DemandSourceType, *po.DemandSourceID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil // demand gone: nobody is waiting for a remake
			}
			return nil, err
		}
	}

	// A retried transition must not cut a second child.
	children, err := s.repo.ListChildren(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		return nil, nil
	}

	maxSeq, err := s.repo.MaxReprintSequence(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	seq := po.ReprintSequence + 1
	if maxSeq >= seq {
		seq = maxSeq + 1
	}

	parentID := po.ID
	return &model.ProductionOrder{
		ID:                      uuid.New(),
		ItemID:                  po.ItemID,
		QuantityOrdered:         outcome.QtyFailed,
		BomVersion:              po.BomVersion,
		Status:                  model.ProdStatusScheduled,
		ParentProductionOrderID: &parentID,
		ReprintSequence:         seq,
		DemandSourceType:        po.DemandSourceType,
		DemandSourceID:          po.DemandSourceID,
	}, nil
}

func (s *productionService) Cancel(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error) {
	po, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	switch po.Status {
	case model.ProdStatusCompleted, model.ProdStatusPartiallyCompleted,
		model.ProdStatusFailed, model.ProdStatusCancelled:
		return nil, &InvalidTransitionError{OrderID: orderID, From: po.Status, To: model.ProdStatusCancelled}
	}

	// Only active handles come back here: consumed material stays consumed.
	held, err := s.ledger.ActiveReservations(ctx, model.RefProductionOrder, orderID)
	if err != nil {
		return nil, err
	}
	for _, r := range held {
		if err := s.ledger.Release(ctx, r.ID); err != nil {
			var consumed *AlreadyConsumedError
			var released *AlreadyReleasedError
			if errors.As(err, &consumed) || errors.As(err, &released) {
				continue
			}
			return nil, err
		}
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusCAS(tx, orderID, po.Status, model.ProdStatusCancelled)
		if err != nil {
			return err
		}
		if rows == 0 {
			return &StaleStateError{OrderID: orderID, Expected: po.Status, Observed: "changed"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("production_order_id", orderID.String()).
		Int("released_reservations", len(held)).
		Msg("production order cancelled")
	return s.repo.FindByID(ctx, orderID)
}

func (s *productionService) ReprintHistory(ctx context.Context, orderID uuid.UUID) (*ReprintHistory, error) {
	root, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("production order %s not found: %w", orderID, err)
	}
	for root.ParentProductionOrderID != nil {
		root, err = s.repo.FindByID(ctx, *root.ParentProductionOrderID)
		if err != nil {
			return nil, err
		}
	}

	chain := []model.ProductionOrder{*root}
	frontier := []uuid.UUID{root.ID}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		children, err := s.repo.ListChildren(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			chain = append(chain, c)
			frontier = append(frontier, c.ID)
		}
	}

	h := &ReprintHistory{
		RootID:         root.ID,
		Orders:         chain,
		TotalOrdered:   decimal.Zero,
		TotalCompleted: decimal.Zero,
		TotalScrapped:  decimal.Zero,
		Yield:          decimal.Zero,
	}
	for _, o := range chain {
		h.TotalOrdered = h.TotalOrdered.Add(o.QuantityOrdered)
		h.TotalCompleted = h.TotalCompleted.Add(o.QtyPassed)
		h.TotalScrapped = h.TotalScrapped.Add(o.QtyFailed).Add(o.QtyImmediateScrap)
	}
	if root.QuantityOrdered.IsPositive() {
		h.Yield = h.TotalCompleted.Div(root.QuantityOrdered)
	}
	return h, nil
}

func (s *productionService) Get(ctx context.Context, orderID uuid.UUID) (*model.ProductionOrder, error) {
	return s.repo.FindByID(ctx, orderID)
}

func (s *productionService) List(ctx context.Context, status string) ([]model.ProductionOrder, error) {
	return s.repo.List(ctx, status)
}

// consumeStage consumes every still-active reservation the order holds for a
// stage. Listing only active handles makes a retried transition skip what a
// previous attempt already consumed.
func (s *productionService) consumeStage(ctx context.Context, orderID uuid.UUID, stage string) error {
	held, err := s.ledger.ActiveReservationsForStage(ctx, model.RefProductionOrder, orderID, stage)
	if err != nil {
		return err
	}
	for _, r := range held {
		if _, err := s.ledger.Consume(ctx, r.ID, r.Quantity); err != nil {
			var consumed *AlreadyConsumedError
			if errors.As(err, &consumed) {
				continue
			}
			return err
		}
	}
	return nil
}

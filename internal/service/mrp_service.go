package service

import (
	"context"
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

// ShortageAlerter publishes the shortages a planning run found. Implemented
// by the redis-backed job queue; nil disables alerting.
type ShortageAlerter interface {
	PublishShortages(ctx context.Context, runID uuid.UUID, shortages []NetRequirement) error
}

// CreateDemandParams is one confirmed demand line entering the planning
// backlog.
type CreateDemandParams struct {
	ItemID     uuid.UUID
	Quantity   decimal.Decimal
	DueDate    time.Time
	SourceType string
	SourceID   uuid.UUID
}

// MRPRunResult is everything one planning run produced.
type MRPRunResult struct {
	Run           *model.MRPRun
	Requirements  []NetRequirement
	PlannedOrders []model.PlannedOrder
}

// MRPService orchestrates a full planning run: collect open demand, explode
// it through BOMs, net run-wide against stock and incoming supply, generate
// planned orders and close the demand out. Each run leaves an auditable
// header whether it completed or failed.
type MRPService interface {
	// RunMRP executes one planning run over the given horizon (0 uses the
	// configured default).
	RunMRP(ctx context.Context, horizonDays int) (*MRPRunResult, error)

	// MaterialRequirements computes a fresh netting snapshot without
	// creating orders or touching demand status.
	MaterialRequirements(ctx context.Context) ([]NetRequirement, error)

	CreateDemand(ctx context.Context, p CreateDemandParams) (*model.DemandRecord, error)
	CloseDemand(ctx context.Context, id uuid.UUID) error

	GetRun(ctx context.Context, id uuid.UUID) (*model.MRPRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.MRPRun, error)
	RunOrders(ctx context.Context, runID uuid.UUID) ([]model.PlannedOrder, error)
}

type mrpService struct {
	runRepo     repository.MRPRunRepository
	demandRepo  repository.DemandRepository
	itemRepo    repository.ItemRepository
	plannedRepo repository.PlannedOrderRepository
	resolver    BomResolver
	netting     NettingService
	planner     PlannerService
	alerter     ShortageAlerter
	planning    config.PlanningConfig
}

func NewMRPService(
	runRepo repository.MRPRunRepository,
	demandRepo repository.DemandRepository,
	itemRepo repository.ItemRepository,
	plannedRepo repository.PlannedOrderRepository,
	resolver BomResolver,
	netting NettingService,
	planner PlannerService,
	alerter ShortageAlerter,
	planning config.PlanningConfig,
) MRPService {
	return &mrpService{
		runRepo:     runRepo,
		demandRepo:  demandRepo,
		itemRepo:    itemRepo,
		plannedRepo: plannedRepo,
		resolver:    resolver,
		netting:     netting,
		planner:     planner,
		alerter:     alerter,
		planning:    planning,
	}
}

func (s *mrpService) RunMRP(ctx context.Context, horizonDays int) (*MRPRunResult, error) {
	if horizonDays <= 0 {
		horizonDays = s.planning.PlanningHorizonDays
	}

	run := &model.MRPRun{
		ID:          uuid.New(),
		Status:      model.MRPRunRunning,
		HorizonDays: horizonDays,
		StartedAt:   time.Now(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	result, err := s.executeRun(ctx, run, horizonDays)
	if err != nil {
		// Planning aborts whole: a half-planned run is worse than none.
		if ferr := s.runRepo.Fail(ctx, run.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("run_id", run.ID.String()).Msg("could not record run failure")
		}
		return nil, fmt.Errorf("planning run %s: %w", run.ID, err)
	}
	return result, nil
}

func (s *mrpService) executeRun(ctx context.Context, run *model.MRPRun, horizonDays int) (*MRPRunResult, error) {
	horizon := time.Now().AddDate(0, 0, horizonDays)
	demands, err := s.demandRepo.FindOpenWithinHorizon(ctx, horizon)
	if err != nil {
		return nil, err
	}

	gross, err := s.grossRequirements(ctx, demands)
	if err != nil {
		return nil, err
	}

	nets, err := s.netting.Net(ctx, gross)
	if err != nil {
		return nil, err
	}

	orders, err := s.planner.Generate(ctx, nets, &run.ID)
	if err != nil {
		return nil, err
	}

	demandIDs := make([]uuid.UUID, 0, len(demands))
	for _, d := range demands {
		demandIDs = append(demandIDs, d.ID)
	}
	err = runTx(ctx, s.demandRepo.DB(), func(tx *gorm.DB) error {
		return s.demandRepo.MarkNettedTx(tx, demandIDs)
	})
	if err != nil {
		return nil, err
	}

	var shortages []NetRequirement
	for _, n := range nets {
		if n.NetRequired.IsPositive() {
			shortages = append(shortages, n)
		}
	}

	if err := s.runRepo.Complete(ctx, run.ID, len(demands), len(orders), len(shortages)); err != nil {
		return nil, err
	}

	if len(shortages) > 0 && s.alerter != nil {
		// Best effort: a failed alert never fails the run.
		if aerr := s.alerter.PublishShortages(ctx, run.ID, shortages); aerr != nil {
			log.Error().Err(aerr).Str("run_id", run.ID.String()).Msg("shortage alert publish failed")
		}
	}

	run, err = s.runRepo.FindByID(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Int("demand_lines", len(demands)).
		Int("planned_orders", len(orders)).
		Int("shortages", len(shortages)).
		Msg("planning run completed")
	return &MRPRunResult{Run: run, Requirements: nets, PlannedOrders: orders}, nil
}

// grossRequirements turns demand lines into netting input: the demanded item
// itself plus its exploded component tree, scrap allowance included.
func (s *mrpService) grossRequirements(ctx context.Context, demands []model.DemandRecord) ([]GrossRequirement, error) {
	var gross []GrossRequirement
	for i := range demands {
		d := demands[i]
		demandID := d.ID
		gross = append(gross, GrossRequirement{
			ItemID:   d.ItemID,
			Quantity: d.Quantity,
			DueDate:  d.DueDate,
			DemandID: &demandID,
		})

		components, err := s.resolver.Explode(ctx, d.ItemID, d.Quantity)
		if err != nil {
			return nil, err
		}
		for _, c := range components {
			gross = append(gross, GrossRequirement{
				ItemID:   c.ItemID,
				Quantity: c.Quantity,
				DueDate:  d.DueDate,
			})
		}
	}
	return gross, nil
}

func (s *mrpService) MaterialRequirements(ctx context.Context) ([]NetRequirement, error) {
	horizon := time.Now().AddDate(0, 0, s.planning.PlanningHorizonDays)
	demands, err := s.demandRepo.FindOpenWithinHorizon(ctx, horizon)
	if err != nil {
		return nil, err
	}
	gross, err := s.grossRequirements(ctx, demands)
	if err != nil {
		return nil, err
	}
	return s.netting.Net(ctx, gross)
}

func (s *mrpService) CreateDemand(ctx context.Context, p CreateDemandParams) (*model.DemandRecord, error) {
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("demand quantity must be positive, got %s", p.Quantity)
	}
	switch p.SourceType {
	case model.DemandSourceSales, model.DemandSourceProduction:
	default:
		return nil, fmt.Errorf("unknown demand source type %q", p.SourceType)
	}
	if _, err := s.itemRepo.FindByID(ctx, p.ItemID); err != nil {
		return nil, fmt.Errorf("item %s not found: %w", p.ItemID, err)
	}

	d := &model.DemandRecord{
		ID:         uuid.New(),
		ItemID:     p.ItemID,
		Quantity:   p.Quantity,
		DueDate:    p.DueDate,
		SourceType: p.SourceType,
		SourceID:   p.SourceID,
		Status:     model.DemandStatusOpen,
	}
	if err := s.demandRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *mrpService) CloseDemand(ctx context.Context, id uuid.UUID) error {
	if _, err := s.demandRepo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("demand %s not found: %w", id, err)
	}
	return s.demandRepo.UpdateStatus(ctx, id, model.DemandStatusClosed)
}

func (s *mrpService) GetRun(ctx context.Context, id uuid.UUID) (*model.MRPRun, error) {
	return s.runRepo.FindByID(ctx, id)
}

func (s *mrpService) ListRuns(ctx context.Context, limit int) ([]model.MRPRun, error) {
	return s.runRepo.ListRecent(ctx, limit)
}

func (s *mrpService) RunOrders(ctx context.Context, runID uuid.UUID) ([]model.PlannedOrder, error) {
	return s.plannedRepo.ListByRun(ctx, runID)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubRunRepo struct {
	runs map[uuid.UUID]*model.MRPRun
}

var _ repository.MRPRunRepository = (*stubRunRepo)(nil)

func newStubRunRepo() *stubRunRepo {
	return &stubRunRepo{runs: make(map[uuid.UUID]*model.MRPRun)}
}

func (r *stubRunRepo) Create(ctx context.Context, run *model.MRPRun) error {
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *stubRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.MRPRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *stubRunRepo) ListRecent(ctx context.Context, limit int) ([]model.MRPRun, error) {
	var out []model.MRPRun
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (r *stubRunRepo) Complete(ctx context.Context, id uuid.UUID, demandCount, ordersCreated, shortageCount int) error {
	run, ok := r.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	run.Status = model.MRPRunCompleted
	run.DemandCount = demandCount
	run.PlannedOrdersCreated = ordersCreated
	run.ShortageCount = shortageCount
	run.CompletedAt = &now
	return nil
}

func (r *stubRunRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	run, ok := r.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	run.Status = model.MRPRunFailed
	run.ErrorMessage = errMsg
	run.CompletedAt = &now
	return nil
}

type stubAlerter struct {
	calls [][]NetRequirement
	err   error
}

func (a *stubAlerter) PublishShortages(ctx context.Context, runID uuid.UUID, shortages []NetRequirement) error {
	a.calls = append(a.calls, shortages)
	return a.err
}

type mrpFixture struct {
	svc        MRPService
	runRepo    *stubRunRepo
	demandRepo *stubDemandRepo
	planned    *stubPlannedRepo
	prodRepo   *stubProdRepo
	ledgerRepo *stubLedgerRepo
	alerter    *stubAlerter
}

func newMRPFixture(t *testing.T, bomRepo *stubBomRepo, demandRepo *stubDemandRepo, items ...*model.Item) *mrpFixture {
	t.Helper()
	itemRepo := newStubItemRepo(items...)
	ledgerRepo := newStubLedgerRepo()
	planned := newStubPlannedRepo()
	prodRepo := newStubProdRepo()
	runRepo := newStubRunRepo()
	alerter := &stubAlerter{}

	resolver := NewBomResolver(bomRepo, itemRepo)
	netting := NewNettingService(ledgerRepo, planned, itemRepo, defaultPlanning())
	planner := NewPlannerService(planned, prodRepo, bomRepo, demandRepo, ledgerRepo, defaultPlanning())
	svc := NewMRPService(runRepo, demandRepo, itemRepo, planned, resolver, netting, planner, alerter, defaultPlanning())

	return &mrpFixture{
		svc:        svc,
		runRepo:    runRepo,
		demandRepo: demandRepo,
		planned:    planned,
		prodRepo:   prodRepo,
		ledgerRepo: ledgerRepo,
		alerter:    alerter,
	}
}

func openDemand(itemID uuid.UUID, qty string, dueDays int) *model.DemandRecord {
	return &model.DemandRecord{
		ID: uuid.New(), ItemID: itemID, Quantity: d(qty), DueDate: due(dueDays),
		SourceType: model.DemandSourceSales, SourceID: uuid.New(),
		Status: model.DemandStatusOpen,
	}
}

func TestRunMRPEndToEnd(t *testing.T) {
	bracket := testItem("FG-BRACKET", "40")
	bracket.ItemType = model.ItemTypeFinished
	bracket.Assembled = true
	pla := testItem("PLA-BLACK", "25")

	bomRepo := &stubBomRepo{}
	ctx := context.Background()
	require.NoError(t, bomRepo.Create(ctx, activeBomFor(bracket.ID,
		bomLine(pla.ID, "0.2", "0", model.StageAtPrint),
	)))

	demand := openDemand(bracket.ID, "10", 10)
	f := newMRPFixture(t, bomRepo, newStubDemandRepo(demand), bracket, pla)

	// One spool on the shelf covers half of the exploded filament need.
	require.NoError(t, f.ledgerRepo.CreatePositionTx(nil, &model.StockPosition{
		ID: uuid.New(), ItemID: pla.ID, OnHand: d("1"), Allocated: decimal.Zero,
	}))

	result, err := f.svc.RunMRP(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, model.MRPRunCompleted, result.Run.Status)
	assert.Equal(t, defaultPlanning().PlanningHorizonDays, result.Run.HorizonDays)
	assert.Equal(t, 1, result.Run.DemandCount)
	assert.Equal(t, 2, result.Run.PlannedOrdersCreated)
	assert.Equal(t, 2, result.Run.ShortageCount)
	require.NotNil(t, result.Run.CompletedAt)

	// Bracket is made, filament is bought, both tagged with the run.
	require.Len(t, result.PlannedOrders, 2)
	byItem := map[uuid.UUID]model.PlannedOrder{}
	for _, po := range result.PlannedOrders {
		byItem[po.ItemID] = po
		require.NotNil(t, po.MRPRunID)
		assert.Equal(t, result.Run.ID, *po.MRPRunID)
	}
	assert.Equal(t, model.OrderTypeMake, byItem[bracket.ID].OrderType)
	assert.True(t, byItem[bracket.ID].Quantity.Equal(d("10")))
	assert.Equal(t, model.OrderTypeBuy, byItem[pla.ID].OrderType)
	assert.True(t, byItem[pla.ID].Quantity.Equal(d("1")))

	// Demand left the backlog and the shortages went out.
	assert.Equal(t, model.DemandStatusNetted, f.demandRepo.demands[demand.ID].Status)
	require.Len(t, f.alerter.calls, 1)
	assert.Len(t, f.alerter.calls[0], 2)
}

func TestRunMRPAlertFailureDoesNotFailRun(t *testing.T) {
	bracket := testItem("FG-BRACKET", "40")
	bracket.Assembled = true
	pla := testItem("PLA-BLACK", "25")

	bomRepo := &stubBomRepo{}
	ctx := context.Background()
	require.NoError(t, bomRepo.Create(ctx, activeBomFor(bracket.ID,
		bomLine(pla.ID, "0.2", "0", model.StageAtPrint),
	)))

	f := newMRPFixture(t, bomRepo, newStubDemandRepo(openDemand(bracket.ID, "5", 7)), bracket, pla)
	f.alerter.err = errors.New("queue unavailable")

	result, err := f.svc.RunMRP(ctx, 14)
	require.NoError(t, err)
	assert.Equal(t, model.MRPRunCompleted, result.Run.Status)
	assert.Len(t, f.alerter.calls, 1)
}

func TestRunMRPFailureRecordsRunHeader(t *testing.T) {
	phantom := testItem("FG-PHANTOM", "10")
	phantom.Assembled = true

	// Assembled demand with no recipe aborts the explosion.
	f := newMRPFixture(t, &stubBomRepo{}, newStubDemandRepo(openDemand(phantom.ID, "3", 5)), phantom)

	_, err := f.svc.RunMRP(context.Background(), 0)
	require.Error(t, err)

	require.Len(t, f.runRepo.runs, 1)
	for _, run := range f.runRepo.runs {
		assert.Equal(t, model.MRPRunFailed, run.Status)
		assert.NotEmpty(t, run.ErrorMessage)
		assert.NotNil(t, run.CompletedAt)
	}
	// Nothing half-planned leaked out.
	assert.Empty(t, f.planned.orders)
}

func TestMaterialRequirementsIsReadOnly(t *testing.T) {
	pla := testItem("PLA-BLACK", "25")
	demand := openDemand(pla.ID, "4", 6)
	f := newMRPFixture(t, &stubBomRepo{}, newStubDemandRepo(demand), pla)

	nets, err := f.svc.MaterialRequirements(context.Background())
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.True(t, nets[0].NetRequired.Equal(d("4")))

	// A snapshot never creates orders, runs or touches the backlog.
	assert.Empty(t, f.planned.orders)
	assert.Empty(t, f.runRepo.runs)
	assert.Equal(t, model.DemandStatusOpen, f.demandRepo.demands[demand.ID].Status)
}

func TestCreateDemandValidates(t *testing.T) {
	pla := testItem("PLA-BLACK", "25")
	f := newMRPFixture(t, &stubBomRepo{}, newStubDemandRepo(), pla)
	ctx := context.Background()

	_, err := f.svc.CreateDemand(ctx, CreateDemandParams{
		ItemID: pla.ID, Quantity: d("0"), DueDate: due(5),
		SourceType: model.DemandSourceSales, SourceID: uuid.New(),
	})
	require.Error(t, err)

	_, err = f.svc.CreateDemand(ctx, CreateDemandParams{
		ItemID: pla.ID, Quantity: d("2"), DueDate: due(5),
		SourceType: "forecast", SourceID: uuid.New(),
	})
	require.Error(t, err)

	_, err = f.svc.CreateDemand(ctx, CreateDemandParams{
		ItemID: uuid.New(), Quantity: d("2"), DueDate: due(5),
		SourceType: model.DemandSourceSales, SourceID: uuid.New(),
	})
	require.Error(t, err)

	dem, err := f.svc.CreateDemand(ctx, CreateDemandParams{
		ItemID: pla.ID, Quantity: d("2"), DueDate: due(5),
		SourceType: model.DemandSourceSales, SourceID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DemandStatusOpen, dem.Status)
}

func TestCloseDemand(t *testing.T) {
	pla := testItem("PLA-BLACK", "25")
	demand := openDemand(pla.ID, "2", 5)
	f := newMRPFixture(t, &stubBomRepo{}, newStubDemandRepo(demand), pla)

	require.NoError(t, f.svc.CloseDemand(context.Background(), demand.ID))
	assert.Equal(t, model.DemandStatusClosed, f.demandRepo.demands[demand.ID].Status)

	err := f.svc.CloseDemand(context.Background(), uuid.New())
	require.Error(t, err)
}

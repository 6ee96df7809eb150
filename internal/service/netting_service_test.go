package service

import (
	"context"
	"testing"
	"time"

	"github.com/printertechn/filaops-sub000/internal/config"
	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubPlannedRepo struct {
	orders map[uuid.UUID]*model.PlannedOrder
}

var _ repository.PlannedOrderRepository = (*stubPlannedRepo)(nil)

func newStubPlannedRepo() *stubPlannedRepo {
	return &stubPlannedRepo{orders: make(map[uuid.UUID]*model.PlannedOrder)}
}

func (r *stubPlannedRepo) Create(ctx context.Context, po *model.PlannedOrder) error {
	cp := *po
	r.orders[po.ID] = &cp
	return nil
}

func (r *stubPlannedRepo) CreateBatchTx(tx *gorm.DB, orders []model.PlannedOrder) error {
	for i := range orders {
		cp := orders[i]
		r.orders[cp.ID] = &cp
	}
	return nil
}

func (r *stubPlannedRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *po
	return &cp, nil
}

func (r *stubPlannedRepo) List(ctx context.Context, status string) ([]model.PlannedOrder, error) {
	var out []model.PlannedOrder
	for _, po := range r.orders {
		if status == "" || po.Status == status {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (r *stubPlannedRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]model.PlannedOrder, error) {
	var out []model.PlannedOrder
	for _, po := range r.orders {
		if po.MRPRunID != nil && *po.MRPRunID == runID {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (r *stubPlannedRepo) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (int64, error) {
	po, ok := r.orders[id]
	if !ok || po.Status != from {
		return 0, nil
	}
	po.Status = to
	return 1, nil
}

func (r *stubPlannedRepo) SetConvertedTx(tx *gorm.DB, id uuid.UUID, convertedTo uuid.UUID) (int64, error) {
	po, ok := r.orders[id]
	if !ok || po.ConvertedToID != nil {
		return 0, nil
	}
	po.ConvertedToID = &convertedTo
	return 1, nil
}

func (r *stubPlannedRepo) OpenSupplyForItem(ctx context.Context, itemID uuid.UUID, horizon time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, po := range r.orders {
		if po.ItemID != itemID || po.Status == model.PlannedStatusCancelled {
			continue
		}
		if po.DueDate.After(horizon) {
			continue
		}
		total = total.Add(po.Quantity)
	}
	return total, nil
}

func (r *stubPlannedRepo) DB() *gorm.DB { return nil }

func defaultPlanning() config.PlanningConfig {
	return config.PlanningConfig{
		DefaultLeadTimeDays: 7,
		PlanningHorizonDays: 30,
		LotSizeRounding:     true,
	}
}

func due(days int) time.Time {
	return time.Now().AddDate(0, 0, days).Truncate(time.Hour)
}

func TestNetPoolsSupplyAcrossDemandLines(t *testing.T) {
	item := testItem("FG-BRACKET", "40")
	ledgerRepo := newStubLedgerRepo()
	require.NoError(t, ledgerRepo.CreatePositionTx(nil, &model.StockPosition{
		ID: uuid.New(), ItemID: item.ID, OnHand: d("10"), Allocated: decimal.Zero,
	}))

	svc := NewNettingService(ledgerRepo, newStubPlannedRepo(), newStubItemRepo(item), defaultPlanning())

	d1, d2 := uuid.New(), uuid.New()
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: item.ID, Quantity: d("6"), DueDate: due(5), DemandID: &d1},
		{ItemID: item.ID, Quantity: d("6"), DueDate: due(9), DemandID: &d2},
	})
	require.NoError(t, err)
	require.Len(t, nets, 1)

	// Two 6-unit lines against 10 on hand: pooled shortage is 2, not 2+6.
	net := nets[0]
	assert.True(t, net.GrossRequired.Equal(d("12")))
	assert.True(t, net.Available.Equal(d("10")))
	assert.True(t, net.NetRequired.Equal(d("2")))
	assert.Len(t, net.SourceDemandIDs, 2)
	assert.True(t, net.EarliestDueDate.Equal(due(5)))
}

func TestNetSubtractsAllocatedFromAvailable(t *testing.T) {
	item := testItem("PLA-BLACK", "25")
	ledgerRepo := newStubLedgerRepo()
	require.NoError(t, ledgerRepo.CreatePositionTx(nil, &model.StockPosition{
		ID: uuid.New(), ItemID: item.ID, OnHand: d("10"), Allocated: d("8"),
	}))

	svc := NewNettingService(ledgerRepo, newStubPlannedRepo(), newStubItemRepo(item), defaultPlanning())
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: item.ID, Quantity: d("5"), DueDate: due(3)},
	})
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.True(t, nets[0].Available.Equal(d("2")))
	assert.True(t, nets[0].NetRequired.Equal(d("3")))
}

func TestNetCountsIncomingSupply(t *testing.T) {
	item := testItem("HW-INSERT-M3", "0.12")
	planned := newStubPlannedRepo()
	require.NoError(t, planned.Create(context.Background(), &model.PlannedOrder{
		ID: uuid.New(), OrderType: model.OrderTypeBuy, ItemID: item.ID,
		Quantity: d("100"), DueDate: due(10), StartDate: due(3),
		Status: model.PlannedStatusFirmed,
	}))

	svc := NewNettingService(newStubLedgerRepo(), planned, newStubItemRepo(item), defaultPlanning())
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: item.ID, Quantity: d("150"), DueDate: due(14)},
	})
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.True(t, nets[0].Incoming.Equal(d("100")))
	assert.True(t, nets[0].NetRequired.Equal(d("50")))
}

func TestNetClampsSurplusToZero(t *testing.T) {
	item := testItem("PLA-WHITE", "25")
	ledgerRepo := newStubLedgerRepo()
	require.NoError(t, ledgerRepo.CreatePositionTx(nil, &model.StockPosition{
		ID: uuid.New(), ItemID: item.ID, OnHand: d("100"), Allocated: decimal.Zero,
	}))

	svc := NewNettingService(ledgerRepo, newStubPlannedRepo(), newStubItemRepo(item), defaultPlanning())
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: item.ID, Quantity: d("5"), DueDate: due(3)},
	})
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.True(t, nets[0].NetRequired.IsZero())
	assert.True(t, nets[0].SuggestedOrderQty.IsZero())
}

func TestSuggestedQtyAppliesMinOrderAndLotSize(t *testing.T) {
	item := testItem("PLA-BLACK", "25")
	item.MinOrderQty = d("2")
	item.LotSize = d("0.75")

	svc := NewNettingService(newStubLedgerRepo(), newStubPlannedRepo(), newStubItemRepo(item), defaultPlanning())
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: item.ID, Quantity: d("1"), DueDate: due(3)},
	})
	require.NoError(t, err)
	require.Len(t, nets, 1)

	// net 1 → min order 2 → rounded up to 3 lots of 0.75 = 2.25
	assert.True(t, nets[0].NetRequired.Equal(d("1")))
	assert.True(t, nets[0].SuggestedOrderQty.Equal(d("2.25")), "got %s", nets[0].SuggestedOrderQty)
}

func TestNetOrdersByEarliestDueDate(t *testing.T) {
	early := testItem("FG-EARLY", "10")
	late := testItem("FG-LATE", "10")

	svc := NewNettingService(newStubLedgerRepo(), newStubPlannedRepo(), newStubItemRepo(early, late), defaultPlanning())
	nets, err := svc.Net(context.Background(), []GrossRequirement{
		{ItemID: late.ID, Quantity: d("1"), DueDate: due(20)},
		{ItemID: early.ID, Quantity: d("1"), DueDate: due(2)},
	})
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.Equal(t, early.ID, nets[0].ItemID)
	assert.Equal(t, late.ID, nets[1].ItemID)
}

package service

import (
	"context"
	"testing"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── in-memory stubs ──────────────────────────────────────────────────────────

type stubLedgerRepo struct {
	positions    map[uuid.UUID]*model.StockPosition
	reservations map[uuid.UUID]*model.Reservation
	transactions []model.LedgerTransaction
}

var _ repository.LedgerRepository = (*stubLedgerRepo)(nil)

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{
		positions:    make(map[uuid.UUID]*model.StockPosition),
		reservations: make(map[uuid.UUID]*model.Reservation),
	}
}

func (r *stubLedgerRepo) FindPosition(ctx context.Context, itemID uuid.UUID) (*model.StockPosition, error) {
	for _, p := range r.positions {
		if p.ItemID == itemID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubLedgerRepo) CreatePositionTx(tx *gorm.DB, p *model.StockPosition) error {
	cp := *p
	r.positions[p.ID] = &cp
	return nil
}

func (r *stubLedgerRepo) SavePositionTx(tx *gorm.DB, p *model.StockPosition) error {
	stored, ok := r.positions[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.OnHand = p.OnHand
	stored.Allocated = p.Allocated
	return nil
}

func (r *stubLedgerRepo) ListPositions(ctx context.Context) ([]model.StockPosition, error) {
	out := make([]model.StockPosition, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubLedgerRepo) CreateTransactionTx(tx *gorm.DB, t *model.LedgerTransaction) error {
	r.transactions = append(r.transactions, *t)
	return nil
}

func (r *stubLedgerRepo) ListTransactionsByItem(ctx context.Context, itemID uuid.UUID) ([]model.LedgerTransaction, error) {
	var out []model.LedgerTransaction
	for _, t := range r.transactions {
		if t.ItemID == itemID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) FindTransactionsByRef(ctx context.Context, refType string, refID uuid.UUID, stage, txnType string) ([]model.LedgerTransaction, error) {
	var out []model.LedgerTransaction
	for _, t := range r.transactions {
		if t.ReferenceType == refType && t.ReferenceID == refID && t.Type == txnType &&
			(stage == "" || t.Stage == stage) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) CreateReservationTx(tx *gorm.DB, res *model.Reservation) error {
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r *stubLedgerRepo) FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, ok := r.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *stubLedgerRepo) UpdateReservationStatusTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	res, ok := r.reservations[id]
	if !ok || res.Status != from {
		return 0, nil
	}
	res.Status = to
	return 1, nil
}

func (r *stubLedgerRepo) FindActiveReservationsByRef(ctx context.Context, refType string, refID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range r.reservations {
		if res.ReferenceType == refType && res.ReferenceID == refID && res.Status == model.ReservationActive {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) FindActiveReservationsByRefStage(ctx context.Context, refType string, refID uuid.UUID, stage string) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range r.reservations {
		if res.ReferenceType == refType && res.ReferenceID == refID && res.Stage == stage && res.Status == model.ReservationActive {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) DB() *gorm.DB { return nil }

type stubItemRepo struct {
	items map[uuid.UUID]*model.Item
}

var _ repository.ItemRepository = (*stubItemRepo)(nil)

func newStubItemRepo(items ...*model.Item) *stubItemRepo {
	r := &stubItemRepo{items: make(map[uuid.UUID]*model.Item)}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *stubItemRepo) Create(ctx context.Context, item *model.Item) error {
	r.items[item.ID] = item
	return nil
}

func (r *stubItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (r *stubItemRepo) FindBySKU(ctx context.Context, sku string) (*model.Item, error) {
	for _, item := range r.items {
		if item.SKU == sku {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubItemRepo) List(ctx context.Context) ([]model.Item, error) {
	out := make([]model.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *stubItemRepo) Update(ctx context.Context, item *model.Item) error {
	r.items[item.ID] = item
	return nil
}

func (r *stubItemRepo) BelowReorderPoint(ctx context.Context) ([]model.Item, error) {
	return nil, nil
}

// stubJournal records posted entries without a database.
type stubJournal struct {
	posted []*model.JournalEntry
}

var _ JournalService = (*stubJournal)(nil)

func (j *stubJournal) PostTransactionTx(tx *gorm.DB, txn *model.LedgerTransaction, item *model.Item) (*model.JournalEntry, error) {
	p, relevant := postingFor(txn, item)
	if !relevant {
		return nil, nil
	}
	amount := txn.Quantity.Abs().Mul(txn.CostPerUnit)
	if amount.IsZero() {
		return nil, nil
	}
	entry := &model.JournalEntry{
		Lines: []model.JournalLine{
			{Account: p.debit, Debit: amount},
			{Account: p.credit, Credit: amount},
		},
	}
	j.posted = append(j.posted, entry)
	return entry, nil
}

func (j *stubJournal) Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*model.JournalEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (j *stubJournal) GetEntry(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (j *stubJournal) ListEntries(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	return nil, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newLedgerFixture(t *testing.T, items ...*model.Item) (LedgerService, *stubLedgerRepo, *stubJournal) {
	t.Helper()
	repo := newStubLedgerRepo()
	journal := &stubJournal{}
	svc := NewLedgerService(repo, newStubItemRepo(items...), journal)
	return svc, repo, journal
}

func testItem(name string, unitCost string) *model.Item {
	return &model.Item{
		ID:       uuid.New(),
		SKU:      name,
		Name:     name,
		ItemType: model.ItemTypeRaw,
		UnitCost: d(unitCost),
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestReserveInsufficientStock(t *testing.T) {
	item := testItem("PLA-BLACK", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("5"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("8"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("5")))
	assert.True(t, insufficient.Requested.Equal(d("8")))

	// All-or-nothing: nothing was allocated.
	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.Allocated.IsZero())
}

func TestReserveCountsExistingAllocations(t *testing.T) {
	item := testItem("PLA-WHITE", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("7"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	// Only 3 left available even though 10 are on hand.
	_, err = svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("4"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("3")))
}

func TestConsumeIsIdempotentPerHandle(t *testing.T) {
	item := testItem("HW-INSERT-M3", "0.12")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("100"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("40"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, res.ID, d("40"))
	require.NoError(t, err)

	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("60")))
	assert.True(t, pos.Allocated.IsZero())

	// Second consume fails with stock unchanged.
	_, err = svc.Consume(ctx, res.ID, d("40"))
	var consumed *AlreadyConsumedError
	require.ErrorAs(t, err, &consumed)

	pos, err = svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("60")))
	assert.True(t, pos.Allocated.IsZero())
}

func TestReleaseAfterConsumeFails(t *testing.T) {
	item := testItem("PLA-RED", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, res.ID, d("10"))
	require.NoError(t, err)

	err = svc.Release(ctx, res.ID)
	var consumed *AlreadyConsumedError
	require.ErrorAs(t, err, &consumed)
}

func TestConsumeVarianceUnderrun(t *testing.T) {
	item := testItem("PLA-GREY", "25")
	svc, repo, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("4"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	// Actual usage came in under the reservation.
	txn, err := svc.Consume(ctx, res.ID, d("3.5"))
	require.NoError(t, err)
	assert.True(t, txn.Variance.Equal(d("-0.5")))

	// The full hold is freed, only actual left stock.
	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("6.5")))
	assert.True(t, pos.Allocated.IsZero())

	// Replay reproduces the same position from the log alone.
	result, err := svc.Replay(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, len(repo.transactions), result.TransactionsReplayed)
}

func TestScrapFromStock(t *testing.T) {
	item := testItem("PLA-BLUE", "25")
	svc, _, journal := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	txn, err := svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("2"),
		ReferenceType: model.RefManual, ReferenceID: uuid.New(),
		ReasonCode: model.ScrapReasonWarping,
	})
	require.NoError(t, err)
	assert.True(t, txn.QuantityDelta.Equal(d("-2")))

	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("8")))

	// Receipt + scrap both posted to the journal.
	assert.Len(t, journal.posted, 2)
}

func TestScrapRejectsUnknownReason(t *testing.T) {
	item := testItem("PLA-GREEN", "25")
	svc, _, _ := newLedgerFixture(t, item)

	_, err := svc.Scrap(context.Background(), ScrapParams{
		ItemID: item.ID, Quantity: d("1"),
		ReferenceType: model.RefManual, ReferenceID: uuid.New(),
		ReasonCode: "BOGUS",
	})
	require.Error(t, err)
}

func TestScrapFromReservationClosesHandle(t *testing.T) {
	item := testItem("PLA-ORANGE", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("10"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	refID := uuid.New()
	res, err := svc.Reserve(ctx, ReserveParams{
		ItemID: item.ID, Quantity: d("4"),
		ReferenceType: model.RefProductionOrder, ReferenceID: refID,
	})
	require.NoError(t, err)

	resID := res.ID
	_, err = svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("3"),
		ReferenceType: model.RefProductionOrder, ReferenceID: refID,
		ReasonCode: model.ScrapReasonLayerAdhesion,
		Origin:     ScrapFromReservation, ReservationID: &resID,
	})
	require.NoError(t, err)

	// Partial scrap still closes the handle; the unscrapped remainder goes
	// back to free stock.
	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("7")))
	assert.True(t, pos.Allocated.IsZero())

	_, err = svc.Consume(ctx, resID, d("1"))
	var consumed *AlreadyConsumedError
	require.ErrorAs(t, err, &consumed)

	// Replay agrees with the stored position through the variance field.
	result, err := svc.Replay(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
}

func TestScrapWIPLeavesPositionUntouched(t *testing.T) {
	item := testItem("FG-BRACKET", "40")
	item.ItemType = model.ItemTypeFinished
	svc, _, journal := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("5"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	txn, err := svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("2"),
		ReferenceType: model.RefProductionOrder, ReferenceID: uuid.New(),
		ReasonCode: model.ScrapReasonSurfaceFinish,
		Origin:     ScrapFromWIP,
	})
	require.NoError(t, err)
	assert.True(t, txn.QuantityDelta.IsZero())
	assert.True(t, txn.Quantity.Equal(d("2")))

	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("5")))

	// Value still left the books even though the position is untouched.
	assert.Len(t, journal.posted, 2)
}

func TestInvariantRejectsNegativeOnHand(t *testing.T) {
	item := testItem("PLA-PURPLE", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("1"),
		ReferenceType: model.RefPurchase, ReferenceID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("2"),
		ReferenceType: model.RefManual, ReferenceID: uuid.New(),
		ReasonCode: model.ScrapReasonOther,
	})
	var violation *InvariantViolationError
	require.ErrorAs(t, err, &violation)

	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("1")))
}

func TestReceiveApplyOnceReturnsPriorReceipt(t *testing.T) {
	item := testItem("PLA-YELLOW", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	orderID := uuid.New()
	first, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("3"),
		ReferenceType: model.RefProductionOrder, ReferenceID: orderID,
		ApplyOnce: true,
	})
	require.NoError(t, err)

	second, err := svc.Receive(ctx, ReceiveParams{
		ItemID: item.ID, Quantity: d("3"),
		ReferenceType: model.RefProductionOrder, ReferenceID: orderID,
		ApplyOnce: true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	pos, err := svc.Position(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, pos.OnHand.Equal(d("28")), "duplicate receipt must not stack: %s", pos.OnHand)
}

func TestScrapApplyOnceReturnsPriorScrap(t *testing.T) {
	item := testItem("PLA-YELLOW", "25")
	svc, _, _ := newLedgerFixture(t, item)
	ctx := context.Background()

	orderID := uuid.New()
	first, err := svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("2"),
		ReferenceType: model.RefProductionOrder, ReferenceID: orderID,
		ReasonCode: model.ScrapReasonWarping,
		Origin:     ScrapFromWIP,
		ApplyOnce:  true,
	})
	require.NoError(t, err)

	second, err := svc.Scrap(ctx, ScrapParams{
		ItemID: item.ID, Quantity: d("2"),
		ReferenceType: model.RefProductionOrder, ReferenceID: orderID,
		ReasonCode: model.ScrapReasonWarping,
		Origin:     ScrapFromWIP,
		ApplyOnce:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

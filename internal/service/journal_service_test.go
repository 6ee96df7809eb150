package service

import (
	"context"
	"testing"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubJournalRepo struct {
	entries map[uuid.UUID]*model.JournalEntry
}

var _ repository.JournalRepository = (*stubJournalRepo)(nil)

func newStubJournalRepo() *stubJournalRepo {
	return &stubJournalRepo{entries: make(map[uuid.UUID]*model.JournalEntry)}
}

func (r *stubJournalRepo) CreateEntryTx(tx *gorm.DB, entry *model.JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *stubJournalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *stubJournalRepo) ListBySourceTransaction(ctx context.Context, txnID uuid.UUID) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	for _, e := range r.entries {
		if e.SourceTransactionID != nil && *e.SourceTransactionID == txnID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *stubJournalRepo) List(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, nil
}

func journalTxn(txnType, refType string, item *model.Item, qty, cost string) *model.LedgerTransaction {
	return &model.LedgerTransaction{
		ID:            uuid.New(),
		ItemID:        item.ID,
		Type:          txnType,
		Quantity:      d(qty),
		QuantityDelta: d(qty),
		ReferenceType: refType,
		ReferenceID:   uuid.New(),
		CostPerUnit:   d(cost),
	}
}

func TestPostTransactionAccountMapping(t *testing.T) {
	raw := testItem("PLA-BLACK", "25")
	finished := testItem("FG-BRACKET", "40")
	finished.ItemType = model.ItemTypeFinished

	cases := []struct {
		name   string
		txn    *model.LedgerTransaction
		item   *model.Item
		debit  string
		credit string
	}{
		{"component consumption", journalTxn(model.TxnConsumption, model.RefProductionOrder, raw, "2", "25"), raw,
			model.AccountWIP, model.AccountRawMaterial},
		{"sales issue of finished goods", journalTxn(model.TxnConsumption, model.RefSalesOrder, finished, "1", "40"), finished,
			model.AccountCOGS, model.AccountFinishedGoods},
		{"purchased receipt", journalTxn(model.TxnReceipt, model.RefPurchase, raw, "10", "25"), raw,
			model.AccountRawMaterial, model.AccountPayable},
		{"production receipt", journalTxn(model.TxnReceipt, model.RefProductionOrder, finished, "8", "40"), finished,
			model.AccountFinishedGoods, model.AccountWIP},
		{"process scrap", journalTxn(model.TxnScrap, model.RefProductionOrder, finished, "2", "40"), finished,
			model.AccountScrapExpense, model.AccountWIP},
		{"finished stock scrap", journalTxn(model.TxnScrap, model.RefManual, finished, "1", "40"), finished,
			model.AccountScrapExpense, model.AccountFinishedGoods},
		{"raw stock scrap", journalTxn(model.TxnScrap, model.RefManual, raw, "1", "25"), raw,
			model.AccountScrapExpense, model.AccountRawMaterial},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubJournalRepo()
			svc := NewJournalService(repo, nil)

			entry, err := svc.PostTransactionTx(nil, tc.txn, tc.item)
			require.NoError(t, err)
			require.NotNil(t, entry)
			require.Len(t, entry.Lines, 2)

			expected := tc.txn.Quantity.Abs().Mul(tc.txn.CostPerUnit)
			assert.Equal(t, tc.debit, entry.Lines[0].Account)
			assert.True(t, entry.Lines[0].Debit.Equal(expected))
			assert.True(t, entry.Lines[0].Credit.IsZero())
			assert.Equal(t, tc.credit, entry.Lines[1].Account)
			assert.True(t, entry.Lines[1].Credit.Equal(expected))
			assert.True(t, entry.Lines[1].Debit.IsZero())

			require.NotNil(t, entry.SourceTransactionID)
			assert.Equal(t, tc.txn.ID, *entry.SourceTransactionID)
		})
	}
}

func TestPostTransactionSkipsNonFinancialMovements(t *testing.T) {
	item := testItem("PLA-BLACK", "25")
	repo := newStubJournalRepo()
	svc := NewJournalService(repo, nil)

	for _, txnType := range []string{model.TxnReservation, model.TxnRelease} {
		entry, err := svc.PostTransactionTx(nil, journalTxn(txnType, model.RefProductionOrder, item, "3", "25"), item)
		require.NoError(t, err)
		assert.Nil(t, entry)
	}
	assert.Empty(t, repo.entries)
}

func TestPostTransactionSkipsZeroValue(t *testing.T) {
	free := testItem("SAMPLE-PLA", "0")
	repo := newStubJournalRepo()
	svc := NewJournalService(repo, nil)

	entry, err := svc.PostTransactionTx(nil, journalTxn(model.TxnReceipt, model.RefPurchase, free, "5", "0"), free)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, repo.entries)
}

func TestReverseSwapsLegsAndKeepsOriginal(t *testing.T) {
	raw := testItem("PLA-BLACK", "25")
	repo := newStubJournalRepo()
	svc := NewJournalService(repo, nil)
	ctx := context.Background()

	orig, err := svc.PostTransactionTx(nil, journalTxn(model.TxnReceipt, model.RefPurchase, raw, "10", "25"), raw)
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, orig.ID, "receipt booked against wrong supplier")
	require.NoError(t, err)
	require.Len(t, rev.Lines, 2)

	// Debits and credits trade places, accounts stay put.
	assert.Equal(t, orig.Lines[0].Account, rev.Lines[0].Account)
	assert.True(t, rev.Lines[0].Credit.Equal(orig.Lines[0].Debit))
	assert.True(t, rev.Lines[0].Debit.IsZero())
	assert.True(t, rev.Lines[1].Debit.Equal(orig.Lines[1].Credit))

	require.NotNil(t, rev.ReversesEntryID)
	assert.Equal(t, orig.ID, *rev.ReversesEntryID)

	// Append-only: the original entry is untouched and both are stored.
	stored, err := svc.GetEntry(ctx, orig.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].Debit.Equal(d("250")))
	assert.Len(t, repo.entries, 2)
}

func TestReverseUnknownEntryFails(t *testing.T) {
	svc := NewJournalService(newStubJournalRepo(), nil)
	_, err := svc.Reverse(context.Background(), uuid.New(), "no such entry")
	require.Error(t, err)
}

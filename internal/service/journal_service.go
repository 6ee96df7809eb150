package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JournalService converts ledger movements into balanced double-entry
// postings. Postings are append-only: corrections are reversing entries,
// never edits.
type JournalService interface {
	// PostTransactionTx posts the journal entry for one financially-relevant
	// ledger transaction inside the same DB transaction that appended it, so
	// stock movement and value movement commit or roll back together.
	// Transactions with no financial effect (reservations, releases,
	// zero-value movements) post nothing and return nil, nil.
	PostTransactionTx(tx *gorm.DB, txn *model.LedgerTransaction, item *model.Item) (*model.JournalEntry, error)

	// Reverse creates a new entry with debit and credit legs swapped,
	// pointing back at the original. The original is never touched.
	Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*model.JournalEntry, error)

	GetEntry(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error)
	ListEntries(ctx context.Context, limit int) ([]model.JournalEntry, error)
}

type journalService struct {
	repo repository.JournalRepository
	db   *gorm.DB
}

func NewJournalService(repo repository.JournalRepository, db *gorm.DB) JournalService {
	return &journalService{repo: repo, db: db}
}

// posting names the two legs for one transaction class.
type posting struct {
	debit  string
	credit string
}

// postingFor is the table-driven mapping from transaction type + context to
// account categories. Keeping it in one table (instead of logic scattered
// across transition handlers) is what keeps every entry balanced by
// construction.
func postingFor(txn *model.LedgerTransaction, item *model.Item) (posting, bool) {
	switch txn.Type {
	case model.TxnConsumption:
		if item.ItemType == model.ItemTypeFinished && txn.ReferenceType == model.RefSalesOrder {
			// Finished goods issued against a sales order: cost of goods sold.
			return posting{debit: model.AccountCOGS, credit: model.AccountFinishedGoods}, true
		}
		// Components drawn into work in progress.
		return posting{debit: model.AccountWIP, credit: model.AccountRawMaterial}, true

	case model.TxnReceipt:
		if item.ItemType == model.ItemTypeFinished {
			// Production output: WIP becomes finished goods.
			return posting{debit: model.AccountFinishedGoods, credit: model.AccountWIP}, true
		}
		// Purchased receipt: asset against the supplier payable.
		return posting{debit: model.AccountRawMaterial, credit: model.AccountPayable}, true

	case model.TxnScrap:
		if txn.ReferenceType == model.RefProductionOrder {
			// Process loss: value was already in WIP.
			return posting{debit: model.AccountScrapExpense, credit: model.AccountWIP}, true
		}
		if item.ItemType == model.ItemTypeFinished {
			return posting{debit: model.AccountScrapExpense, credit: model.AccountFinishedGoods}, true
		}
		return posting{debit: model.AccountScrapExpense, credit: model.AccountRawMaterial}, true
	}
	// Reservations, releases and quantity-only adjustments move no value.
	return posting{}, false
}

func (s *journalService) PostTransactionTx(tx *gorm.DB, txn *model.LedgerTransaction, item *model.Item) (*model.JournalEntry, error) {
	p, relevant := postingFor(txn, item)
	if !relevant {
		return nil, nil
	}

	amount := txn.Quantity.Abs().Mul(txn.CostPerUnit)
	if amount.IsZero() {
		// Zero-value movement (e.g. cost-free sample material): nothing to post.
		return nil, nil
	}

	txnID := txn.ID
	itemID := txn.ItemID
	refID := txn.ReferenceID
	entry := &model.JournalEntry{
		Description:         fmt.Sprintf("%s %s x %s", txn.Type, item.SKU, txn.Quantity.Abs()),
		SourceTransactionID: &txnID,
		PostedAt:            time.Now(),
		Lines: []model.JournalLine{
			{
				Account:       p.debit,
				Debit:         amount,
				Credit:        decimal.Zero,
				ItemID:        &itemID,
				ReferenceType: txn.ReferenceType,
				ReferenceID:   &refID,
			},
			{
				Account:       p.credit,
				Debit:         decimal.Zero,
				Credit:        amount,
				ItemID:        &itemID,
				ReferenceType: txn.ReferenceType,
				ReferenceID:   &refID,
			},
		},
	}

	if err := validateBalanced(entry); err != nil {
		return nil, err
	}
	if err := s.repo.CreateEntryTx(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *journalService) Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*model.JournalEntry, error) {
	orig, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("journal entry %s not found: %w", entryID, err)
	}
	if len(orig.Lines) == 0 {
		return nil, errors.New("cannot reverse an entry with no lines")
	}

	origID := orig.ID
	rev := &model.JournalEntry{
		Description:     fmt.Sprintf("reversal of %s: %s", orig.ID, reason),
		ReversesEntryID: &origID,
		PostedAt:        time.Now(),
	}
	for _, line := range orig.Lines {
		rev.Lines = append(rev.Lines, model.JournalLine{
			Account:       line.Account,
			Debit:         line.Credit,
			Credit:        line.Debit,
			ItemID:        line.ItemID,
			ReferenceType: line.ReferenceType,
			ReferenceID:   line.ReferenceID,
		})
	}
	if err := validateBalanced(rev); err != nil {
		return nil, err
	}

	err = runTx(ctx, s.db, func(tx *gorm.DB) error {
		return s.repo.CreateEntryTx(tx, rev)
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func (s *journalService) GetEntry(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *journalService) ListEntries(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	return s.repo.List(ctx, limit)
}

// validateBalanced rejects any entry whose debits and credits do not sum
// equal. Posting an unbalanced entry is a programming error, caught before
// it reaches the database.
func validateBalanced(entry *model.JournalEntry) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, line := range entry.Lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("unbalanced journal entry: debits %s != credits %s", debits, credits)
	}
	return nil
}

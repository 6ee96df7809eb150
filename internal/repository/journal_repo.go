package repository

import (
	"context"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JournalRepository defines the data access contract for the double-entry
// journal. Entries are append-only: there is deliberately no update method.
type JournalRepository interface {
	CreateEntryTx(tx *gorm.DB, entry *model.JournalEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error)
	ListBySourceTransaction(ctx context.Context, txnID uuid.UUID) ([]model.JournalEntry, error)
	List(ctx context.Context, limit int) ([]model.JournalEntry, error)
}

type journalRepo struct{ db *gorm.DB }

func NewJournalRepository(db *gorm.DB) JournalRepository { return &journalRepo{db: db} }

func (r *journalRepo) CreateEntryTx(tx *gorm.DB, entry *model.JournalEntry) error {
	return tx.Create(entry).Error
}

func (r *journalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	err := r.db.WithContext(ctx).Preload("Lines").First(&entry, id).Error
	return &entry, err
}

func (r *journalRepo) ListBySourceTransaction(ctx context.Context, txnID uuid.UUID) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("source_transaction_id = ?", txnID).
		Find(&entries).Error
	return entries, err
}

func (r *journalRepo) List(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit < 1 {
		limit = 100
	}
	var entries []model.JournalEntry
	err := r.db.WithContext(ctx).Preload("Lines").
		Order("posted_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

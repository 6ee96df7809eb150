package repository

import (
	"context"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DemandRepository defines the data access contract for confirmed demand.
type DemandRepository interface {
	Create(ctx context.Context, d *model.DemandRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DemandRecord, error)

	// FindOpenWithinHorizon returns open demand due on or before the horizon
	// date, ordered by due date so the earliest need drives order dates.
	FindOpenWithinHorizon(ctx context.Context, horizon time.Time) ([]model.DemandRecord, error)

	// FindOpenBySource checks whether the originating order still has open
	// demand (reprint-on-failure only fires while it does).
	FindOpenBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (*model.DemandRecord, error)

	// MarkNettedTx flips a batch of demand lines to netted inside the
	// planning run's transaction.
	MarkNettedTx(tx *gorm.DB, ids []uuid.UUID) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type demandRepo struct{ db *gorm.DB }

func NewDemandRepository(db *gorm.DB) DemandRepository { return &demandRepo{db: db} }

func (r *demandRepo) Create(ctx context.Context, d *model.DemandRecord) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *demandRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.DemandRecord, error) {
	var d model.DemandRecord
	err := r.db.WithContext(ctx).First(&d, id).Error
	return &d, err
}

func (r *demandRepo) FindOpenWithinHorizon(ctx context.Context, horizon time.Time) ([]model.DemandRecord, error) {
	var demands []model.DemandRecord
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("status = ? AND due_date <= ?", model.DemandStatusOpen, horizon).
		Order("due_date ASC").
		Find(&demands).Error
	return demands, err
}

func (r *demandRepo) FindOpenBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (*model.DemandRecord, error) {
	var d model.DemandRecord
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ? AND status = ?", sourceType, sourceID, model.DemandStatusOpen).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *demandRepo) MarkNettedTx(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&model.DemandRecord{}).
		Where("id IN ?", ids).
		Update("status", model.DemandStatusNetted).Error
}

func (r *demandRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&model.DemandRecord{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *demandRepo) DB() *gorm.DB { return r.db }

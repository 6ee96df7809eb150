package repository

import (
	"context"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MRPRunRepository defines the data access contract for planning-run headers.
type MRPRunRepository interface {
	Create(ctx context.Context, run *model.MRPRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MRPRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.MRPRun, error)

	// Complete closes a run with final counters; Fail records the abort
	// reason. Both set CompletedAt.
	Complete(ctx context.Context, id uuid.UUID, demandCount, ordersCreated, shortageCount int) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

type mrpRunRepo struct{ db *gorm.DB }

func NewMRPRunRepository(db *gorm.DB) MRPRunRepository { return &mrpRunRepo{db: db} }

func (r *mrpRunRepo) Create(ctx context.Context, run *model.MRPRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *mrpRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.MRPRun, error) {
	var run model.MRPRun
	err := r.db.WithContext(ctx).First(&run, id).Error
	return &run, err
}

func (r *mrpRunRepo) ListRecent(ctx context.Context, limit int) ([]model.MRPRun, error) {
	if limit < 1 {
		limit = 20
	}
	var runs []model.MRPRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (r *mrpRunRepo) Complete(ctx context.Context, id uuid.UUID, demandCount, ordersCreated, shortageCount int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.MRPRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 model.MRPRunCompleted,
			"demand_count":           demandCount,
			"planned_orders_created": ordersCreated,
			"shortage_count":         shortageCount,
			"completed_at":           now,
		}).Error
}

func (r *mrpRunRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.MRPRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.MRPRunFailed,
			"error_message": errMsg,
			"completed_at":  now,
		}).Error
}

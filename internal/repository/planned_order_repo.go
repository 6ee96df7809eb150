package repository

import (
	"context"
	"time"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlannedOrderRepository defines the data access contract for planned orders.
type PlannedOrderRepository interface {
	Create(ctx context.Context, po *model.PlannedOrder) error
	CreateBatchTx(tx *gorm.DB, orders []model.PlannedOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error)
	List(ctx context.Context, status string) ([]model.PlannedOrder, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]model.PlannedOrder, error)

	// UpdateStatusCAS transitions status only when the current value matches
	// from; returns rows affected so callers can detect a lost race.
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (int64, error)

	// SetConvertedTx records the downstream order created on release.
	// Guarded on converted_to_id IS NULL so a retried release never
	// re-points an already converted order.
	SetConvertedTx(tx *gorm.DB, id uuid.UUID, convertedTo uuid.UUID) (int64, error)

	// OpenSupplyForItem sums quantities on open (planned/firmed/released, not
	// cancelled) orders for an item due within the horizon — the "incoming"
	// leg of netting.
	OpenSupplyForItem(ctx context.Context, itemID uuid.UUID, horizon time.Time) (decimal.Decimal, error)

	DB() *gorm.DB
}

type plannedOrderRepo struct{ db *gorm.DB }

func NewPlannedOrderRepository(db *gorm.DB) PlannedOrderRepository { return &plannedOrderRepo{db: db} }

func (r *plannedOrderRepo) Create(ctx context.Context, po *model.PlannedOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *plannedOrderRepo) CreateBatchTx(tx *gorm.DB, orders []model.PlannedOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return tx.Create(&orders).Error
}

func (r *plannedOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PlannedOrder, error) {
	var po model.PlannedOrder
	err := r.db.WithContext(ctx).Preload("Item").First(&po, id).Error
	return &po, err
}

func (r *plannedOrderRepo) List(ctx context.Context, status string) ([]model.PlannedOrder, error) {
	var orders []model.PlannedOrder
	q := r.db.WithContext(ctx).Preload("Item")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("due_date ASC").Find(&orders).Error
	return orders, err
}

func (r *plannedOrderRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]model.PlannedOrder, error) {
	var orders []model.PlannedOrder
	err := r.db.WithContext(ctx).Where("mrp_run_id = ?", runID).Order("due_date ASC").Find(&orders).Error
	return orders, err
}

func (r *plannedOrderRepo) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.PlannedOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *plannedOrderRepo) SetConvertedTx(tx *gorm.DB, id uuid.UUID, convertedTo uuid.UUID) (int64, error) {
	result := tx.Model(&model.PlannedOrder{}).
		Where("id = ? AND converted_to_id IS NULL", id).
		Update("converted_to_id", convertedTo)
	return result.RowsAffected, result.Error
}

func (r *plannedOrderRepo) OpenSupplyForItem(ctx context.Context, itemID uuid.UUID, horizon time.Time) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).Model(&model.PlannedOrder{}).
		Select("SUM(quantity)").
		Where("item_id = ? AND status IN ? AND due_date <= ?",
			itemID,
			[]string{model.PlannedStatusPlanned, model.PlannedStatusFirmed, model.PlannedStatusReleased},
			horizon).
		Scan(&raw).Error
	if err != nil || raw == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(*raw)
}

func (r *plannedOrderRepo) DB() *gorm.DB { return r.db }

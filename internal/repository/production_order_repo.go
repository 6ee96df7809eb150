package repository

import (
	"context"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductionOrderRepository defines the data access contract for production
// orders and their reprint chains.
type ProductionOrderRepository interface {
	Create(ctx context.Context, po *model.ProductionOrder) error
	CreateTx(tx *gorm.DB, po *model.ProductionOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductionOrder, error)
	List(ctx context.Context, status string) ([]model.ProductionOrder, error)

	// UpdateStatusCAS applies a transition only when the observed status
	// matches the expected pre-state. Rows affected 0 means another worker
	// moved the order first (StaleStateError at the service layer).
	UpdateStatusCAS(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error)

	// UpdateFieldsTx persists transition side data (quantities, timestamps)
	// inside the transition's transaction.
	UpdateFieldsTx(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error

	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.ProductionOrder, error)

	// MaxReprintSequence returns the highest sequence in the chain rooted at
	// parentID (0 when no reprints exist yet).
	MaxReprintSequence(ctx context.Context, parentID uuid.UUID) (int, error)

	DB() *gorm.DB
}

type productionOrderRepo struct{ db *gorm.DB }

func NewProductionOrderRepository(db *gorm.DB) ProductionOrderRepository {
	return &productionOrderRepo{db: db}
}

func (r *productionOrderRepo) Create(ctx context.Context, po *model.ProductionOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *productionOrderRepo) CreateTx(tx *gorm.DB, po *model.ProductionOrder) error {
	return tx.Create(po).Error
}

func (r *productionOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductionOrder, error) {
	var po model.ProductionOrder
	err := r.db.WithContext(ctx).Preload("Item").First(&po, id).Error
	return &po, err
}

func (r *productionOrderRepo) List(ctx context.Context, status string) ([]model.ProductionOrder, error) {
	var orders []model.ProductionOrder
	q := r.db.WithContext(ctx).Preload("Item")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (r *productionOrderRepo) UpdateStatusCAS(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	result := tx.Model(&model.ProductionOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *productionOrderRepo) UpdateFieldsTx(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return tx.Model(&model.ProductionOrder{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productionOrderRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.ProductionOrder, error) {
	var orders []model.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("parent_production_order_id = ?", parentID).
		Order("reprint_sequence ASC").
		Find(&orders).Error
	return orders, err
}

func (r *productionOrderRepo) MaxReprintSequence(ctx context.Context, parentID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&model.ProductionOrder{}).
		Select("MAX(reprint_sequence)").
		Where("parent_production_order_id = ?", parentID).
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *productionOrderRepo) DB() *gorm.DB { return r.db }

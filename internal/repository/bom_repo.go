package repository

import (
	"context"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BomRepository defines the data access contract for versioned BOMs.
type BomRepository interface {
	Create(ctx context.Context, bom *model.BillOfMaterials) error

	// FindActiveByItemID returns the single active BOM version for an item,
	// lines preloaded in authoring order. gorm.ErrRecordNotFound when the
	// item has no active BOM (a leaf for explosion purposes).
	FindActiveByItemID(ctx context.Context, itemID uuid.UUID) (*model.BillOfMaterials, error)

	// FindByItemVersion loads a specific pinned version (in-flight
	// production orders explode against the version they were scheduled with).
	FindByItemVersion(ctx context.Context, itemID uuid.UUID, version int) (*model.BillOfMaterials, error)

	// Activate makes the given version the active one, deactivating any
	// other version of the same item in the same transaction.
	Activate(ctx context.Context, itemID uuid.UUID, version int) error

	ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.BillOfMaterials, error)
}

type bomRepo struct{ db *gorm.DB }

func NewBomRepository(db *gorm.DB) BomRepository { return &bomRepo{db: db} }

func (r *bomRepo) Create(ctx context.Context, bom *model.BillOfMaterials) error {
	return r.db.WithContext(ctx).Create(bom).Error
}

func (r *bomRepo) FindActiveByItemID(ctx context.Context, itemID uuid.UUID) (*model.BillOfMaterials, error) {
	var bom model.BillOfMaterials
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("item_id = ? AND active = true", itemID).
		First(&bom).Error
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

func (r *bomRepo) FindByItemVersion(ctx context.Context, itemID uuid.UUID, version int) (*model.BillOfMaterials, error) {
	var bom model.BillOfMaterials
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("item_id = ? AND version = ?", itemID, version).
		First(&bom).Error
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

func (r *bomRepo) Activate(ctx context.Context, itemID uuid.UUID, version int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.BillOfMaterials{}).
			Where("item_id = ? AND active = true", itemID).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.BillOfMaterials{}).
			Where("item_id = ? AND version = ?", itemID, version).
			Update("active", true).Error
	})
}

func (r *bomRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.BillOfMaterials, error) {
	var boms []model.BillOfMaterials
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("version ASC").
		Find(&boms).Error
	return boms, err
}

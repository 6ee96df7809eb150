package repository

import (
	"context"

	"github.com/printertechn/filaops-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository is the persistence contract for the three inventory-ledger
// aggregates: stock positions, reservations and the append-only transaction
// log. The ledger service is its only caller; nothing else writes stock.
type LedgerRepository interface {
	// Positions
	FindPosition(ctx context.Context, itemID uuid.UUID) (*model.StockPosition, error)
	CreatePositionTx(tx *gorm.DB, p *model.StockPosition) error
	// SavePositionTx persists new OnHand/Allocated values computed under the
	// item's writer lock.
	SavePositionTx(tx *gorm.DB, p *model.StockPosition) error
	ListPositions(ctx context.Context) ([]model.StockPosition, error)

	// Transactions (append-only)
	CreateTransactionTx(tx *gorm.DB, t *model.LedgerTransaction) error
	ListTransactionsByItem(ctx context.Context, itemID uuid.UUID) ([]model.LedgerTransaction, error)
	// FindTransactionsByRef is the idempotency lookup: has this
	// order+stage+type already hit the ledger?
	FindTransactionsByRef(ctx context.Context, refType string, refID uuid.UUID, stage, txnType string) ([]model.LedgerTransaction, error)

	// Reservations
	CreateReservationTx(tx *gorm.DB, res *model.Reservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// UpdateReservationStatusTx is a compare-and-swap on reservation status;
	// returns the number of rows changed (0 = lost the race / already moved).
	UpdateReservationStatusTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error)
	FindActiveReservationsByRef(ctx context.Context, refType string, refID uuid.UUID) ([]model.Reservation, error)
	FindActiveReservationsByRefStage(ctx context.Context, refType string, refID uuid.UUID, stage string) ([]model.Reservation, error)

	// DB exposes the underlying *gorm.DB so the ledger service can run each
	// primitive as one ACID transaction.
	DB() *gorm.DB
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) FindPosition(ctx context.Context, itemID uuid.UUID) (*model.StockPosition, error) {
	var p model.StockPosition
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ledgerRepo) CreatePositionTx(tx *gorm.DB, p *model.StockPosition) error {
	return tx.Create(p).Error
}

func (r *ledgerRepo) SavePositionTx(tx *gorm.DB, p *model.StockPosition) error {
	return tx.Model(&model.StockPosition{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"on_hand":   p.OnHand,
			"allocated": p.Allocated,
		}).Error
}

func (r *ledgerRepo) ListPositions(ctx context.Context) ([]model.StockPosition, error) {
	var positions []model.StockPosition
	err := r.db.WithContext(ctx).Preload("Item").Find(&positions).Error
	return positions, err
}

func (r *ledgerRepo) CreateTransactionTx(tx *gorm.DB, t *model.LedgerTransaction) error {
	return tx.Create(t).Error
}

func (r *ledgerRepo) ListTransactionsByItem(ctx context.Context, itemID uuid.UUID) ([]model.LedgerTransaction, error) {
	var txns []model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *ledgerRepo) FindTransactionsByRef(ctx context.Context, refType string, refID uuid.UUID, stage, txnType string) ([]model.LedgerTransaction, error) {
	var txns []model.LedgerTransaction
	q := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND type = ?", refType, refID, txnType)
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	err := q.Find(&txns).Error
	return txns, err
}

func (r *ledgerRepo) CreateReservationTx(tx *gorm.DB, res *model.Reservation) error {
	return tx.Create(res).Error
}

func (r *ledgerRepo) FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).First(&res, id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ledgerRepo) UpdateReservationStatusTx(tx *gorm.DB, id uuid.UUID, from, to string) (int64, error) {
	result := tx.Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *ledgerRepo) FindActiveReservationsByRef(ctx context.Context, refType string, refID uuid.UUID) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND status = ?", refType, refID, model.ReservationActive).
		Find(&rs).Error
	return rs, err
}

func (r *ledgerRepo) FindActiveReservationsByRefStage(ctx context.Context, refType string, refID uuid.UUID, stage string) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND stage = ? AND status = ?",
			refType, refID, stage, model.ReservationActive).
		Find(&rs).Error
	return rs, err
}

func (r *ledgerRepo) DB() *gorm.DB { return r.db }

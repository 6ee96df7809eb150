package infra

import (
	"fmt"

	"github.com/printertechn/filaops-sub000/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies idempotent SQL patches that GORM
// cannot express (partial indexes mostly).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the full schema: AutoMigrate for tables and plain
// indexes, then SQL patches for the constraints GORM cannot declare.
// Safe to re-run; also used by integration tests against a fresh database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Item{},
		&model.BillOfMaterials{},
		&model.BomLine{},
		&model.StockPosition{},
		&model.LedgerTransaction{},
		&model.Reservation{},
		&model.DemandRecord{},
		&model.MRPRun{},
		&model.PlannedOrder{},
		&model.ProductionOrder{},
		&model.JournalEntry{},
		&model.JournalLine{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle on its
// own. Each statement is guarded by an existence check so re-running on an
// already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one active BOM version per item. Activation flips the flag
		// inside a transaction; this index makes the invariant hold even if a
		// buggy write path races it.
		{"one active BOM per item", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uidx_bom_active_per_item') THEN
    CREATE UNIQUE INDEX uidx_bom_active_per_item
        ON bill_of_materials (item_id)
        WHERE active;
  END IF;
END $$`},
		// Partial index for the planning run's open-demand query.
		{"open demand within horizon", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_demand_open_due') THEN
    CREATE INDEX idx_demand_open_due
        ON demand_records (due_date)
        WHERE status = 'open';
  END IF;
END $$`},
		// Partial index for staged-consumption lookups during production.
		{"active reservations by reference", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_reservations_active_ref') THEN
    CREATE INDEX idx_reservations_active_ref
        ON reservations (reference_type, reference_id)
        WHERE status = 'active';
  END IF;
END $$`},
		// Production settlement books at most one receipt and one scrap per
		// order. The service dedupes under the item lock; this index is the
		// cross-process backstop. Scoped to production orders so purchase
		// receipts can still arrive in multiple deliveries.
		{"one settlement per production order", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uidx_ledger_po_settlement') THEN
    CREATE UNIQUE INDEX uidx_ledger_po_settlement
        ON ledger_transactions (reference_type, reference_id, stage, type)
        WHERE reference_type = 'production_order' AND type IN ('receipt', 'scrap');
  END IF;
END $$`},
		// Replay walks an item's ledger in insertion order.
		{"ledger replay order", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ledger_item_created') THEN
    CREATE INDEX idx_ledger_item_created
        ON ledger_transactions (item_id, created_at);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemParams carries the writable fields of an item master.
type ItemParams struct {
	SKU           string
	Name          string
	ItemType      string
	Assembled     bool
	LeadTimeDays  int
	MinOrderQty   decimal.Decimal
	LotSize       decimal.Decimal
	ReorderPoint  decimal.Decimal
	SafetyStock   decimal.Decimal
	UnitCost      decimal.Decimal
	UnitOfMeasure string
}

// ItemService manages item masters.
type ItemService interface {
	Create(ctx context.Context, p ItemParams) (*model.Item, error)
	Update(ctx context.Context, id uuid.UUID, p ItemParams) (*model.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Item, error)
	GetBySKU(ctx context.Context, sku string) (*model.Item, error)
	List(ctx context.Context) ([]model.Item, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	LowStock(ctx context.Context) ([]model.Item, error)
}

type itemService struct {
	repo repository.ItemRepository
}

func NewItemService(repo repository.ItemRepository) ItemService {
	return &itemService{repo: repo}
}

func validateItemParams(p ItemParams) error {
	if p.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch p.ItemType {
	case model.ItemTypeRaw, model.ItemTypeComponent, model.ItemTypeFinished:
	default:
		return fmt.Errorf("unknown item type %q", p.ItemType)
	}
	if p.MinOrderQty.IsNegative() || p.LotSize.IsNegative() ||
		p.ReorderPoint.IsNegative() || p.SafetyStock.IsNegative() || p.UnitCost.IsNegative() {
		return fmt.Errorf("quantity and cost fields cannot be negative")
	}
	return nil
}

func (s *itemService) Create(ctx context.Context, p ItemParams) (*model.Item, error) {
	if err := validateItemParams(p); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindBySKU(ctx, p.SKU); err == nil {
		return nil, fmt.Errorf("sku %q already exists", p.SKU)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	uom := p.UnitOfMeasure
	if uom == "" {
		uom = "unit"
	}
	item := &model.Item{
		ID:            uuid.New(),
		SKU:           p.SKU,
		Name:          p.Name,
		ItemType:      p.ItemType,
		Assembled:     p.Assembled,
		LeadTimeDays:  p.LeadTimeDays,
		MinOrderQty:   p.MinOrderQty,
		LotSize:       p.LotSize,
		ReorderPoint:  p.ReorderPoint,
		SafetyStock:   p.SafetyStock,
		UnitCost:      p.UnitCost,
		UnitOfMeasure: uom,
		Active:        true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Update(ctx context.Context, id uuid.UUID, p ItemParams) (*model.Item, error) {
	if err := validateItemParams(p); err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("item %s not found: %w", id, err)
	}

	item.SKU = p.SKU
	item.Name = p.Name
	item.ItemType = p.ItemType
	item.Assembled = p.Assembled
	item.LeadTimeDays = p.LeadTimeDays
	item.MinOrderQty = p.MinOrderQty
	item.LotSize = p.LotSize
	item.ReorderPoint = p.ReorderPoint
	item.SafetyStock = p.SafetyStock
	item.UnitCost = p.UnitCost
	if p.UnitOfMeasure != "" {
		item.UnitOfMeasure = p.UnitOfMeasure
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *itemService) GetBySKU(ctx context.Context, sku string) (*model.Item, error) {
	return s.repo.FindBySKU(ctx, sku)
}

func (s *itemService) List(ctx context.Context) ([]model.Item, error) {
	return s.repo.List(ctx)
}

func (s *itemService) Deactivate(ctx context.Context, id uuid.UUID) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("item %s not found: %w", id, err)
	}
	item.Active = false
	return s.repo.Update(ctx, item)
}

func (s *itemService) LowStock(ctx context.Context) ([]model.Item, error) {
	return s.repo.BelowReorderPoint(ctx)
}

// BomLineParams is one authored recipe line.
type BomLineParams struct {
	ComponentItemID  uuid.UUID
	QtyPerParent     decimal.Decimal
	ScrapFactor      decimal.Decimal
	ConsumptionStage string
}

// BomService manages versioned recipes. Editing never mutates a version in
// place: a change is a new version, and activation atomically swaps which
// version planning sees.
type BomService interface {
	// CreateVersion authors the next version for an item (inactive until
	// activated, unless it is the item's first version).
	CreateVersion(ctx context.Context, itemID uuid.UUID, lines []BomLineParams) (*model.BillOfMaterials, error)
	Activate(ctx context.Context, itemID uuid.UUID, version int) error
	GetActive(ctx context.Context, itemID uuid.UUID) (*model.BillOfMaterials, error)
	GetVersion(ctx context.Context, itemID uuid.UUID, version int) (*model.BillOfMaterials, error)
	ListVersions(ctx context.Context, itemID uuid.UUID) ([]model.BillOfMaterials, error)
}

type bomService struct {
	repo     repository.BomRepository
	itemRepo repository.ItemRepository
	resolver BomResolver
}

func NewBomService(repo repository.BomRepository, itemRepo repository.ItemRepository, resolver BomResolver) BomService {
	return &bomService{repo: repo, itemRepo: itemRepo, resolver: resolver}
}

func (s *bomService) CreateVersion(ctx context.Context, itemID uuid.UUID, lines []BomLineParams) (*model.BillOfMaterials, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("a bom needs at least one line")
	}
	if _, err := s.itemRepo.FindByID(ctx, itemID); err != nil {
		return nil, fmt.Errorf("item %s not found: %w", itemID, err)
	}

	seen := make(map[uuid.UUID]bool, len(lines))
	for i, l := range lines {
		if l.ComponentItemID == itemID {
			return nil, fmt.Errorf("line %d: an item cannot be its own component", i+1)
		}
		if seen[l.ComponentItemID] {
			return nil, fmt.Errorf("line %d: duplicate component %s", i+1, l.ComponentItemID)
		}
		seen[l.ComponentItemID] = true
		if !l.QtyPerParent.IsPositive() {
			return nil, fmt.Errorf("line %d: qty_per_parent must be positive", i+1)
		}
		if l.ScrapFactor.IsNegative() {
			return nil, fmt.Errorf("line %d: scrap_factor cannot be negative", i+1)
		}
		switch l.ConsumptionStage {
		case model.StageAtPrint, model.StageAtCompletion:
		default:
			return nil, fmt.Errorf("line %d: unknown consumption stage %q", i+1, l.ConsumptionStage)
		}
		if _, err := s.itemRepo.FindByID(ctx, l.ComponentItemID); err != nil {
			return nil, fmt.Errorf("line %d: component %s not found: %w", i+1, l.ComponentItemID, err)
		}
	}

	existing, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	version := 1
	for _, b := range existing {
		if b.Version >= version {
			version = b.Version + 1
		}
	}

	bom := &model.BillOfMaterials{
		ID:      uuid.New(),
		ItemID:  itemID,
		Version: version,
		// The first version goes live immediately; later versions wait for an
		// explicit activation so planners can review them.
		Active: len(existing) == 0,
	}
	for i, l := range lines {
		bom.Lines = append(bom.Lines, model.BomLine{
			ID:               uuid.New(),
			BomID:            bom.ID,
			Position:         i + 1,
			ComponentItemID:  l.ComponentItemID,
			QtyPerParent:     l.QtyPerParent,
			ScrapFactor:      l.ScrapFactor,
			ConsumptionStage: l.ConsumptionStage,
		})
	}
	if err := s.repo.Create(ctx, bom); err != nil {
		return nil, err
	}

	// Walk the new recipe once so a cycle is caught at authoring time, not in
	// the middle of a planning run.
	if bom.Active {
		if _, err := s.resolver.Explode(ctx, itemID, decimal.NewFromInt(1)); err != nil {
			var cyclic *CyclicBomError
			if errors.As(err, &cyclic) {
				return nil, err
			}
		}
	}

	log.Info().
		Str("item_id", itemID.String()).
		Int("version", version).
		Int("lines", len(lines)).
		Bool("active", bom.Active).
		Msg("bom version created")
	return bom, nil
}

func (s *bomService) Activate(ctx context.Context, itemID uuid.UUID, version int) error {
	if _, err := s.repo.FindByItemVersion(ctx, itemID, version); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("item %s has no bom version %d", itemID, version)
		}
		return err
	}
	return s.repo.Activate(ctx, itemID, version)
}

func (s *bomService) GetActive(ctx context.Context, itemID uuid.UUID) (*model.BillOfMaterials, error) {
	return s.repo.FindActiveByItemID(ctx, itemID)
}

func (s *bomService) GetVersion(ctx context.Context, itemID uuid.UUID, version int) (*model.BillOfMaterials, error) {
	return s.repo.FindByItemVersion(ctx, itemID, version)
}

func (s *bomService) ListVersions(ctx context.Context, itemID uuid.UUID) ([]model.BillOfMaterials, error) {
	return s.repo.ListByItem(ctx, itemID)
}

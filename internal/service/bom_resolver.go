package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ComponentRequirement is one exploded demand line: Quantity of Item needed
// to build the requested parent, scrap allowance included. Output order
// mirrors BOM line order with each parent before its sub-components, so
// reports are deterministic run to run.
type ComponentRequirement struct {
	ItemID           uuid.UUID
	Quantity         decimal.Decimal
	Level            int
	ParentItemID     uuid.UUID
	ConsumptionStage string
}

// BomResolver recursively explodes a finished item's active BOM into
// component demand. The walk is over item identifiers with a per-path
// visited set — no parent/child object pointers, so cyclic data can be
// detected instead of looping or leaking.
type BomResolver interface {
	// Explode expands qty units of itemID through its active BOM.
	// An item with no active BOM is a leaf unless flagged assembled
	// (MissingBomError). A component reappearing on its own expansion path
	// is a CyclicBomError; no partial output is returned.
	Explode(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) ([]ComponentRequirement, error)

	// ExplodeVersion expands against a pinned BOM version at the top level
	// (production orders are scheduled against a specific version; lower
	// levels follow whatever is active, as released sub-assemblies do).
	ExplodeVersion(ctx context.Context, itemID uuid.UUID, version int, qty decimal.Decimal) ([]ComponentRequirement, error)
}

type bomResolver struct {
	bomRepo  repository.BomRepository
	itemRepo repository.ItemRepository
}

func NewBomResolver(bomRepo repository.BomRepository, itemRepo repository.ItemRepository) BomResolver {
	return &bomResolver{bomRepo: bomRepo, itemRepo: itemRepo}
}

func (r *bomResolver) Explode(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal) ([]ComponentRequirement, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("explode quantity must be positive, got %s", qty)
	}
	bom, err := r.activeBom(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if bom == nil {
		return nil, nil // leaf: nothing to explode
	}
	visited := map[uuid.UUID]bool{itemID: true}
	return r.explodeLines(ctx, bom, itemID, qty, 1, visited)
}

func (r *bomResolver) ExplodeVersion(ctx context.Context, itemID uuid.UUID, version int, qty decimal.Decimal) ([]ComponentRequirement, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("explode quantity must be positive, got %s", qty)
	}
	bom, err := r.bomRepo.FindByItemVersion(ctx, itemID, version)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &MissingBomError{ItemID: itemID}
		}
		return nil, err
	}
	visited := map[uuid.UUID]bool{itemID: true}
	return r.explodeLines(ctx, bom, itemID, qty, 1, visited)
}

// activeBom returns nil, nil for a legitimate leaf and MissingBomError for an
// assembled item whose BOM is missing or inactive.
func (r *bomResolver) activeBom(ctx context.Context, itemID uuid.UUID) (*model.BillOfMaterials, error) {
	bom, err := r.bomRepo.FindActiveByItemID(ctx, itemID)
	if err == nil {
		return bom, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	item, ierr := r.itemRepo.FindByID(ctx, itemID)
	if ierr != nil {
		return nil, fmt.Errorf("item %s not found: %w", itemID, ierr)
	}
	if item.Assembled {
		return nil, &MissingBomError{ItemID: itemID}
	}
	return nil, nil
}

// explodeLines walks one BOM's lines in authoring order, emitting each
// component requirement before recursing into it. visited is the current
// expansion path, copied per branch so siblings may legitimately share
// components.
func (r *bomResolver) explodeLines(ctx context.Context, bom *model.BillOfMaterials, parentID uuid.UUID, parentQty decimal.Decimal, level int, visited map[uuid.UUID]bool) ([]ComponentRequirement, error) {
	var out []ComponentRequirement
	for _, line := range bom.Lines {
		if visited[line.ComponentItemID] {
			return nil, &CyclicBomError{ItemID: line.ComponentItemID, Path: pathOf(visited)}
		}

		// required = parentQty × qty_per_parent × (1 + scrap_factor)
		required := parentQty.
			Mul(line.QtyPerParent).
			Mul(decimal.NewFromInt(1).Add(line.ScrapFactor))

		out = append(out, ComponentRequirement{
			ItemID:           line.ComponentItemID,
			Quantity:         required,
			Level:            level,
			ParentItemID:     parentID,
			ConsumptionStage: line.ConsumptionStage,
		})

		childBom, err := r.activeBom(ctx, line.ComponentItemID)
		if err != nil {
			return nil, err
		}
		if childBom == nil {
			continue
		}

		branch := copyVisited(visited)
		branch[line.ComponentItemID] = true
		sub, err := r.explodeLines(ctx, childBom, line.ComponentItemID, required, level+1, branch)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func copyVisited(visited map[uuid.UUID]bool) map[uuid.UUID]bool {
	c := make(map[uuid.UUID]bool, len(visited)+1)
	for k := range visited {
		c[k] = true
	}
	return c
}

func pathOf(visited map[uuid.UUID]bool) []uuid.UUID {
	path := make([]uuid.UUID, 0, len(visited))
	for id := range visited {
		path = append(path, id)
	}
	return path
}

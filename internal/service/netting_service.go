package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/printertechn/filaops-sub000/internal/config"
	"github.com/printertechn/filaops-sub000/internal/model"
	"github.com/printertechn/filaops-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GrossRequirement is one demand line entering a netting run: either raw
// confirmed demand or an exploded component requirement.
type GrossRequirement struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	DueDate  time.Time
	DemandID *uuid.UUID
}

// NetRequirement is the per-item outcome of one planning run. NetRequired is
// the analytical shortage; SuggestedOrderQty additionally applies min-order
// and lot-size policy, kept separate so analysis and ordering don't blur.
type NetRequirement struct {
	ItemID            uuid.UUID
	Item              *model.Item
	GrossRequired     decimal.Decimal
	Available         decimal.Decimal
	Incoming          decimal.Decimal
	NetRequired       decimal.Decimal
	SuggestedOrderQty decimal.Decimal
	// EarliestDueDate drives the generated order's due date.
	EarliestDueDate time.Time
	// SourceDemandIDs traces every demand line pooled into this requirement.
	SourceDemandIDs []uuid.UUID
}

// NettingService aggregates gross requirements by item and nets them against
// available and incoming supply.
//
// Netting is run-wide, not per demand line: a line that alone would be short
// may be covered by pooling supply across all lines in the run. This is a
// deliberate policy favouring aggregate material efficiency over per-line
// fairness.
type NettingService interface {
	Net(ctx context.Context, requirements []GrossRequirement) ([]NetRequirement, error)
}

type nettingService struct {
	ledger      repository.LedgerRepository
	plannedRepo repository.PlannedOrderRepository
	itemRepo    repository.ItemRepository
	planning    config.PlanningConfig
}

func NewNettingService(
	ledger repository.LedgerRepository,
	plannedRepo repository.PlannedOrderRepository,
	itemRepo repository.ItemRepository,
	planning config.PlanningConfig,
) NettingService {
	return &nettingService{
		ledger:      ledger,
		plannedRepo: plannedRepo,
		itemRepo:    itemRepo,
		planning:    planning,
	}
}

func (s *nettingService) Net(ctx context.Context, requirements []GrossRequirement) ([]NetRequirement, error) {
	type bucket struct {
		gross    decimal.Decimal
		earliest time.Time
		demands  []uuid.UUID
	}

	// Group run-wide by item, remembering first-seen order for stable output.
	buckets := make(map[uuid.UUID]*bucket)
	var order []uuid.UUID
	for _, req := range requirements {
		b, ok := buckets[req.ItemID]
		if !ok {
			b = &bucket{gross: decimal.Zero, earliest: req.DueDate}
			buckets[req.ItemID] = b
			order = append(order, req.ItemID)
		}
		b.gross = b.gross.Add(req.Quantity)
		if req.DueDate.Before(b.earliest) {
			b.earliest = req.DueDate
		}
		if req.DemandID != nil {
			b.demands = append(b.demands, *req.DemandID)
		}
	}

	horizon := time.Now().AddDate(0, 0, s.planning.PlanningHorizonDays)

	var out []NetRequirement
	for _, itemID := range order {
		b := buckets[itemID]

		item, err := s.itemRepo.FindByID(ctx, itemID)
		if err != nil {
			return nil, err
		}

		available := decimal.Zero
		pos, err := s.ledger.FindPosition(ctx, itemID)
		switch {
		case err == nil:
			// available = max(0, on_hand − allocated)
			if a := pos.Available(); a.IsPositive() {
				available = a
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No position yet: item has never been stocked.
		default:
			return nil, err
		}

		incoming, err := s.plannedRepo.OpenSupplyForItem(ctx, itemID, horizon)
		if err != nil {
			return nil, err
		}

		net := b.gross.Sub(available).Sub(incoming)
		if net.IsNegative() {
			net = decimal.Zero
		}

		out = append(out, NetRequirement{
			ItemID:            itemID,
			Item:              item,
			GrossRequired:     b.gross,
			Available:         available,
			Incoming:          incoming,
			NetRequired:       net,
			SuggestedOrderQty: s.suggestedQty(item, net),
			EarliestDueDate:   b.earliest,
			SourceDemandIDs:   b.demands,
		})
	}

	// Earliest need first; stable tiebreak on item id for determinism.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EarliestDueDate.Equal(out[j].EarliestDueDate) {
			return out[i].ItemID.String() < out[j].ItemID.String()
		}
		return out[i].EarliestDueDate.Before(out[j].EarliestDueDate)
	})
	return out, nil
}

// suggestedQty applies ordering policy on top of the analytical shortage:
// at least the item's minimum order quantity, rounded up to lot-size
// multiples when configured.
func (s *nettingService) suggestedQty(item *model.Item, net decimal.Decimal) decimal.Decimal {
	if !net.IsPositive() {
		return decimal.Zero
	}
	qty := net
	if item.MinOrderQty.GreaterThan(qty) {
		qty = item.MinOrderQty
	}
	if s.planning.LotSizeRounding && item.LotSize.IsPositive() {
		lots := qty.Div(item.LotSize).Ceil()
		qty = lots.Mul(item.LotSize)
	}
	return qty
}

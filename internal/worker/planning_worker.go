package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

// PlanningJobPayload asks for a full planning run over the given horizon.
// Zero horizon means the configured default.
type PlanningJobPayload struct {
	HorizonDays int `json:"horizon_days"`
}

// PlanningWorker executes queued planning runs. Runs are serialized through
// the queue, so two async triggers never plan against each other.
type PlanningWorker struct {
	mrp service.MRPService
}

func NewPlanningWorker(mrp service.MRPService) *PlanningWorker {
	return &PlanningWorker{mrp: mrp}
}

func (w *PlanningWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload PlanningJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("planning worker: unmarshal payload: %w", err)
	}

	start := time.Now()
	result, err := w.mrp.RunMRP(ctx, payload.HorizonDays)
	if err != nil {
		return fmt.Errorf("planning worker: run failed: %w", err)
	}

	log.Info().
		Str("run_id", result.Run.ID.String()).
		Int("demand_count", result.Run.DemandCount).
		Int("orders_created", result.Run.PlannedOrdersCreated).
		Int("shortage_count", result.Run.ShortageCount).
		Dur("elapsed", time.Since(start)).
		Msg("planning run completed")
	return nil
}

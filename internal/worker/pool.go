package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueuePlanning = "jobs:planning"
	QueueAlerts   = "jobs:alerts"

	// maxJobAttempts before a job is parked in the DLQ.
	maxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueuePlanningRun queues a full planning run for background execution.
func (d *Dispatcher) EnqueuePlanningRun(ctx context.Context, horizonDays int) error {
	return d.enqueue(ctx, QueuePlanning, "planning_run", PlanningJobPayload{HorizonDays: horizonDays})
}

// EnqueueAlert queues an alert email.
func (d *Dispatcher) EnqueueAlert(ctx context.Context, payload AlertJobPayload) error {
	return d.enqueue(ctx, QueueAlerts, "alert_email", payload)
}

// PublishShortages satisfies the planning service's alerter contract: the
// shortages a run found become one alert email job.
func (d *Dispatcher) PublishShortages(ctx context.Context, runID uuid.UUID, shortages []service.NetRequirement) error {
	payload := AlertJobPayload{
		Kind:  AlertKindShortage,
		RunID: runID.String(),
	}
	for _, s := range shortages {
		line := AlertLine{
			ItemID:      s.ItemID.String(),
			NetRequired: s.NetRequired.String(),
			DueDate:     s.EarliestDueDate.Format("2006-01-02"),
		}
		if s.Item != nil {
			line.SKU = s.Item.SKU
			line.Name = s.Item.Name
		}
		payload.Lines = append(payload.Lines, line)
	}
	return d.EnqueueAlert(ctx, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// WorkerHandlers collects the concrete job processors, wired at the
// composition root so they have full access to infrastructure dependencies.
type WorkerHandlers struct {
	Planning *PlanningWorker
	Alert    *AlertWorker
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueuePlanning, QueueAlerts}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

// processJob runs one job through its handler. A failed job is requeued with
// its attempt counter bumped; past maxJobAttempts it is parked in the DLQ.
func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	var err error
	switch queue {
	case QueuePlanning:
		err = handlers.Planning.Process(ctx, job.Payload)
	case QueueAlerts:
		err = handlers.Alert.Process(ctx, job.Payload)
	default:
		log.Warn().Str("queue", queue).Str("type", job.Type).Msg("no handler for queue")
		return
	}
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= maxJobAttempts {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Err(err).
		Msg("job failed, requeueing")
	if encoded, merr := json.Marshal(job); merr == nil {
		if perr := rdb.LPush(ctx, queue, encoded).Err(); perr != nil {
			log.Error().Err(perr).Str("queue", queue).Msg("requeue failed")
		}
	}
}

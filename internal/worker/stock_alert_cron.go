package worker

// stock_alert_cron.go
// Background goroutine that periodically scans for items at or below their
// reorder point and enqueues a low-stock alert email. Redis SETNX keys keep
// each item from alerting more than once per day.

import (
	"context"
	"time"

	"github.com/printertechn/filaops-sub000/internal/repository"
	"github.com/printertechn/filaops-sub000/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	stockAlertTickInterval = 15 * time.Minute
	stockAlertDedupeTTL    = 24 * time.Hour
	stockAlertDedupePrefix = "alerts:lowstock:"
)

// StockAlertCronConfig holds all dependencies for the low-stock scanner.
type StockAlertCronConfig struct {
	ItemRepo   repository.ItemRepository
	Ledger     service.LedgerService
	Dispatcher *Dispatcher
	RDB        *redis.Client
}

// StartStockAlertCron launches a background goroutine that ticks every 15m,
// scans reorder points, and enqueues one alert job per batch of newly-low
// items. It respects the context for graceful shutdown.
func StartStockAlertCron(ctx context.Context, cfg StockAlertCronConfig) {
	go func() {
		ticker := time.NewTicker(stockAlertTickInterval)
		defer ticker.Stop()

		log.Info().Msg("stock_alert_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stock_alert_cron: shutting down")
				return
			case <-ticker.C:
				scanReorderPoints(ctx, cfg)
			}
		}
	}()
}

func scanReorderPoints(ctx context.Context, cfg StockAlertCronConfig) {
	items, err := cfg.ItemRepo.BelowReorderPoint(ctx)
	if err != nil {
		log.Error().Err(err).Msg("stock_alert_cron: reorder point scan failed")
		return
	}
	if len(items) == 0 {
		return
	}

	var lines []AlertLine
	for i := range items {
		item := &items[i]

		// One alert per item per day
		key := stockAlertDedupePrefix + item.ID.String()
		fresh, err := cfg.RDB.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), stockAlertDedupeTTL).Result()
		if err != nil {
			log.Error().Err(err).Str("item_id", item.ID.String()).Msg("stock_alert_cron: dedupe check failed")
			continue
		}
		if !fresh {
			continue
		}

		line := AlertLine{
			ItemID:    item.ID.String(),
			SKU:       item.SKU,
			Name:      item.Name,
			ReorderAt: item.ReorderPoint.String(),
		}
		if pos, err := cfg.Ledger.Position(ctx, item.ID); err == nil {
			line.OnHand = pos.OnHand.String()
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return
	}

	log.Info().Int("count", len(lines)).Msg("stock_alert_cron: enqueueing low-stock alert")
	if err := cfg.Dispatcher.EnqueueAlert(ctx, AlertJobPayload{Kind: AlertKindLowStock, Lines: lines}); err != nil {
		log.Error().Err(err).Msg("stock_alert_cron: enqueue failed")
	}
}

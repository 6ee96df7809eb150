package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/printertechn/filaops-sub000/internal/infra"

	"github.com/rs/zerolog/log"
)

const (
	AlertKindShortage = "shortage"
	AlertKindLowStock = "low_stock"
)

// AlertLine is one item flagged in an alert email.
type AlertLine struct {
	ItemID      string `json:"item_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	NetRequired string `json:"net_required,omitempty"`
	OnHand      string `json:"on_hand,omitempty"`
	ReorderAt   string `json:"reorder_at,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// AlertJobPayload carries everything needed to render one alert email.
type AlertJobPayload struct {
	Kind  string      `json:"kind"`
	RunID string      `json:"run_id,omitempty"`
	Lines []AlertLine `json:"lines"`
}

// AlertWorker renders and sends alert emails. All SMTP traffic goes through
// the circuit breaker so a dead relay fast-fails instead of stalling workers.
type AlertWorker struct {
	mailer *infra.Mailer
	cb     *infra.CircuitBreaker
	to     string
}

func NewAlertWorker(mailer *infra.Mailer, cb *infra.CircuitBreaker, to string) *AlertWorker {
	return &AlertWorker{mailer: mailer, cb: cb, to: to}
}

func (w *AlertWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload AlertJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("alert worker: unmarshal payload: %w", err)
	}
	if w.to == "" {
		log.Warn().Str("kind", payload.Kind).Msg("alert worker: no recipient configured, dropping alert")
		return nil
	}
	if len(payload.Lines) == 0 {
		return nil
	}

	subject, body := renderAlert(payload)
	err := w.cb.Execute(func() error {
		return w.mailer.SendAlert(w.to, subject, body)
	})
	if err != nil {
		return fmt.Errorf("alert worker: send %s alert: %w", payload.Kind, err)
	}

	log.Info().
		Str("kind", payload.Kind).
		Int("lines", len(payload.Lines)).
		Msg("alert email sent")
	return nil
}

func renderAlert(payload AlertJobPayload) (subject, body string) {
	var b strings.Builder
	switch payload.Kind {
	case AlertKindLowStock:
		subject = fmt.Sprintf("Low stock alert: %d item(s) below reorder point", len(payload.Lines))
		b.WriteString("The following items have fallen below their reorder point:\n\n")
		for _, l := range payload.Lines {
			fmt.Fprintf(&b, "  %-20s %-30s on hand %s (reorder at %s)\n", l.SKU, l.Name, l.OnHand, l.ReorderAt)
		}
	default:
		subject = fmt.Sprintf("Material shortage alert: %d item(s) short", len(payload.Lines))
		if payload.RunID != "" {
			fmt.Fprintf(&b, "Planning run %s found shortages that available and incoming supply cannot cover:\n\n", payload.RunID)
		} else {
			b.WriteString("The latest planning run found shortages that available and incoming supply cannot cover:\n\n")
		}
		for _, l := range payload.Lines {
			fmt.Fprintf(&b, "  %-20s %-30s short %s, needed by %s\n", l.SKU, l.Name, l.NetRequired, l.DueDate)
		}
	}
	b.WriteString("\nPlanned orders covering these shortages are awaiting review.\n")
	return subject, b.String()
}

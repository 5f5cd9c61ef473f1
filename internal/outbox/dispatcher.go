package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/config"
	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Dispatcher polls unprocessed events, routes them to handlers, retries and
// moves exhausted events to the DLQ (§4.2).
type Dispatcher struct {
	pool     database.TxQuerier
	registry *Registry
	cfg      config.OutboxConfig
}

func NewDispatcher(pool database.TxQuerier, registry *Registry, cfg config.OutboxConfig) *Dispatcher {
	return &Dispatcher{pool: pool, registry: registry, cfg: cfg}
}

// RunOnce executes one dispatch cycle (§4.2 steps 1-5).
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	repo := NewRepository(d.pool)

	events, err := repo.ClaimBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("outbox: claim batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	groups := groupByType(events)
	for eventType, batch := range groups {
		d.dispatchGroup(ctx, repo, eventType, batch)
	}
	return nil
}

func groupByType(events []*model.OutboxEvent) map[model.EventType][]*model.OutboxEvent {
	groups := make(map[model.EventType][]*model.OutboxEvent)
	for _, e := range events {
		groups[e.EventType] = append(groups[e.EventType], e)
	}
	return groups
}

// dispatchGroup runs every registered handler for eventType over batch,
// tracking per-event success across both batch-capable and per-event
// handlers, then records each event's final outcome (§4.2 steps 3-5).
func (d *Dispatcher) dispatchGroup(ctx context.Context, repo *Repository, eventType model.EventType, batch []*model.OutboxEvent) {
	handlers := d.registry.HandlersFor(eventType)
	if len(handlers) == 0 {
		for _, e := range batch {
			if err := repo.MoveToDLQ(ctx, e, "no handler registered for event type"); err != nil {
				log.Error().Err(err).Int64("eventID", e.ID).Msg("outbox: failed to move unhandled event to DLQ")
			}
		}
		return
	}

	failed := make(map[int64]string)
	for _, h := range handlers {
		if h.SupportsBatch() {
			if err := h.HandleBatch(ctx, batch); err != nil {
				for _, e := range batch {
					failed[e.ID] = err.Error()
				}
			}
			continue
		}
		for _, e := range batch {
			if _, already := failed[e.ID]; already {
				continue
			}
			if err := h.Handle(ctx, e); err != nil {
				failed[e.ID] = err.Error()
			}
		}
	}

	for _, e := range batch {
		if errMsg, bad := failed[e.ID]; bad {
			d.recordFailure(ctx, repo, e, errMsg)
			continue
		}
		if err := repo.MarkProcessed(ctx, e.ID); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			log.Error().Err(err).Int64("eventID", e.ID).Msg("outbox: failed to mark event processed")
		}
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, repo *Repository, e *model.OutboxEvent, errMsg string) {
	nextRetry := e.RetryCount + 1
	if nextRetry >= d.cfg.MaxRetry {
		if err := repo.MoveToDLQ(ctx, e, errMsg); err != nil {
			log.Error().Err(err).Int64("eventID", e.ID).Msg("outbox: failed to move exhausted event to DLQ")
		}
		return
	}
	if err := repo.RecordFailure(ctx, e.ID, errMsg); err != nil {
		log.Error().Err(err).Int64("eventID", e.ID).Msg("outbox: failed to record event failure")
	}
}

// RunLoop runs RunOnce on the configured poll interval until ctx is
// cancelled.
func (d *Dispatcher) RunLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("outbox: dispatch cycle failed")
			}
		}
	}
}

// DLQMonitor periodically alerts on unresolved DLQ rows and emits a textual
// report grouped by event type (§4.2 step 6).
type DLQMonitor struct {
	pool      database.TxQuerier
	cfg       config.OutboxConfig
	alertFunc func(count int)
}

func NewDLQMonitor(pool database.TxQuerier, cfg config.OutboxConfig, alertFunc func(count int)) *DLQMonitor {
	if alertFunc == nil {
		alertFunc = func(count int) {
			log.Warn().Int("unresolved", count).Msg("outbox DLQ alert threshold exceeded")
		}
	}
	return &DLQMonitor{pool: pool, cfg: cfg, alertFunc: alertFunc}
}

func (m *DLQMonitor) CheckAlert(ctx context.Context) error {
	repo := NewRepository(m.pool)
	n, err := repo.CountUnresolvedDLQ(ctx)
	if err != nil {
		return err
	}
	if n >= m.cfg.DLQAlertThreshold {
		m.alertFunc(n)
	}
	return nil
}

func (m *DLQMonitor) EmitReport(ctx context.Context) error {
	repo := NewRepository(m.pool)
	rows, err := repo.DLQReport(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		log.Info().
			Str("eventType", string(r.EventType)).
			Int("count", r.Count).
			Time("oldest", r.Oldest).
			Msg("outbox DLQ report")
	}
	return nil
}

// RunLoop runs the alert check on DLQAlertInterval and the report on
// DLQReportInterval until ctx is cancelled.
func (m *DLQMonitor) RunLoop(ctx context.Context) {
	alertTicker := time.NewTicker(m.cfg.DLQAlertInterval)
	reportTicker := time.NewTicker(m.cfg.DLQReportInterval)
	defer alertTicker.Stop()
	defer reportTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-alertTicker.C:
			if err := m.CheckAlert(ctx); err != nil {
				log.Error().Err(err).Msg("outbox: DLQ alert check failed")
			}
		case <-reportTicker.C:
			if err := m.EmitReport(ctx); err != nil {
				log.Error().Err(err).Msg("outbox: DLQ report failed")
			}
		}
	}
}

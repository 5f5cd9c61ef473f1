package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/internal/stats"
	"github.com/shopsaga/order-core/pkg/database"
)

// StatsHandler feeds the statistics pipeline's ingest path (§4.10) from
// PaymentCompleted: one sale increment per distinct product in the order.
// Best-effort analytics, not a financial ledger, so a redelivered event
// double-counting a sale is an accepted approximation rather than something
// worth a dedup-table round trip.
type StatsHandler struct {
	pool     database.TxQuerier
	ingestor *stats.Ingestor
}

func NewStatsHandler(pool database.TxQuerier, ingestor *stats.Ingestor) *StatsHandler {
	return &StatsHandler{pool: pool, ingestor: ingestor}
}

func (h *StatsHandler) Name() string { return "StatsHandler" }

func (h *StatsHandler) SupportedEventTypes() []model.EventType {
	return []model.EventType{model.EventPaymentCompleted}
}

func (h *StatsHandler) SupportsBatch() bool { return false }

func (h *StatsHandler) Priority() int { return 50 }

func (h *StatsHandler) HandleBatch(ctx context.Context, events []*model.OutboxEvent) error {
	return fmt.Errorf("stats handler: batch processing not supported")
}

func (h *StatsHandler) Handle(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PaymentCompletedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("stats handler: decode PaymentCompleted payload: %w", err)
	}

	o, err := order.NewRepository(h.pool).Get(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("stats handler: load order %d: %w", payload.OrderID, err)
	}

	seen := make(map[int64]bool, len(o.Items))
	for _, item := range o.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		if err := h.ingestor.Record(ctx, item.ProductID, model.StatEventSale); err != nil {
			return fmt.Errorf("stats handler: record sale for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// Package outbox implements the transactional outbox writer and the saga
// dispatcher (components C/D/E, §4.1-§4.3): events are appended inside the
// caller's transaction, then polled, routed to handlers and retried by a
// scheduled worker. Grounded on the teacher's TxQuerier-over-pgx repository
// style (internal/repository), generalized from a single-aggregate
// repository into the append-only outbox table every domain service writes
// to.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"context"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// ErrAlreadyProcessed mirrors §4.2 step 5's "marking twice is rejected".
var ErrAlreadyProcessed = errors.New("outbox: event already processed")

// Writer appends domain events inside the caller's transaction (§4.1).
type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

// Append validates and inserts an outbox row using tx, which must be the
// same transaction the caller used to write the aggregate change, so either
// both commit or neither does.
func (w *Writer) Append(ctx context.Context, tx database.TxQuerier, eventType model.EventType, aggregateType model.AggregateType, aggregateID string, payload any) error {
	if eventType == "" || aggregateType == "" || aggregateID == "" {
		return fmt.Errorf("outbox: eventType, aggregateType and aggregateId are required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_type, aggregate_type, aggregate_id, payload, processed, retry_count, created_at)
		VALUES ($1, $2, $3, $4, false, 0, now())`,
		eventType, aggregateType, aggregateID, body)
	return err
}

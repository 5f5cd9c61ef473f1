package outbox

import (
	"context"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Dedup backs the dedup-table idempotency strategy of §4.6 for handlers
// whose effect has no natural uniqueness constraint and no cheap
// current-state check (inventory deduction, in particular: subtracting a
// quantity twice is not a no-op).
type Dedup struct {
	db database.TxQuerier
}

func NewDedup(db database.TxQuerier) *Dedup {
	return &Dedup{db: db}
}

// Claim records (eventType, aggregateID, eventID) as handled and reports whether this
// call is the first to do so. Callers run it inside the same transaction as
// the side effect it guards, so a crash between the two never leaves the
// dedup row and the effect disagreeing.
func (d *Dedup) Claim(ctx context.Context, eventType model.EventType, aggregateID string, eventID int64) (firstClaim bool, err error) {
	tag, err := d.db.Exec(ctx, `
		INSERT INTO handled_events (event_type, aggregate_id, event_id, handled_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_type, aggregate_id, event_id) DO NOTHING`,
		eventType, aggregateID, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

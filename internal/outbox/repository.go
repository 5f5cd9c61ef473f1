package outbox

import (
	"context"
	"time"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
)

// Repository reads/writes outbox_events and outbox_events_dlq.
type Repository struct {
	db database.TxQuerier
}

func NewRepository(db database.TxQuerier) *Repository {
	return &Repository{db: db}
}

// ClaimBatch fetches up to size unprocessed events ordered by id (§4.2
// step 1).
func (r *Repository) ClaimBatch(ctx context.Context, size int) ([]*model.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, retry_count, created_at
		FROM outbox_events
		WHERE processed = false
		ORDER BY id
		LIMIT $1`, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.OutboxEvent
	for rows.Next() {
		var e model.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.Payload, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkProcessed implements §4.2 step 5's success path; affected==0 means the
// event was already marked processed by a concurrent dispatcher cycle.
func (r *Repository) MarkProcessed(ctx context.Context, eventID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET processed = true, processed_at = $1, error_message = NULL
		WHERE id = $2 AND processed = false`, time.Now(), eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// RecordFailure implements §4.2 step 5's failure path: increments
// retryCount and records the error message, leaving the event unprocessed
// for the next cycle.
func (r *Repository) RecordFailure(ctx context.Context, eventID int64, errMsg string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, error_message = $1
		WHERE id = $2`, errMsg, eventID)
	return err
}

// MoveToDLQ snapshots the event into outbox_events_dlq and marks the
// original terminally failed (processed=true so the dispatcher stops
// retrying it, errorMessage retained for diagnostics).
func (r *Repository) MoveToDLQ(ctx context.Context, e *model.OutboxEvent, reason string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO outbox_events_dlq
			(original_event_id, event_type, aggregate_type, aggregate_id, payload, failed_at, error_message, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		e.ID, e.EventType, e.AggregateType, e.AggregateID, e.Payload, time.Now(), reason)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE outbox_events
		SET processed = true, processed_at = $1, error_message = $2
		WHERE id = $3`, time.Now(), reason, e.ID)
	return err
}

// CountUnresolvedDLQ is the DLQ monitor's threshold check (§4.2 step 6).
func (r *Repository) CountUnresolvedDLQ(ctx context.Context) (int, error) {
	row := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events_dlq WHERE resolved = false`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DLQReport groups unresolved DLQ rows by event type for the periodic
// textual report (§4.2 step 6).
type DLQReportRow struct {
	EventType model.EventType
	Count     int
	Oldest    time.Time
}

func (r *Repository) DLQReport(ctx context.Context) ([]DLQReportRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_type, COUNT(*), MIN(failed_at)
		FROM outbox_events_dlq
		WHERE resolved = false
		GROUP BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DLQReportRow
	for rows.Next() {
		var row DLQReportRow
		if err := rows.Scan(&row.EventType, &row.Count, &row.Oldest); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

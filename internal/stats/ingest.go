// Package stats implements the event-sourced statistics pipeline (component
// I, §4.10): hot counters and a per-hour event log in the memory store,
// folded periodically into durable counters and a popularity ranking.
// Grounded on the teacher's cache-aside Redis client usage pattern
// (pkg/memstore, itself grounded on the pack's stock-cache service),
// generalized into the ingest/fold/rank pipeline SPEC_FULL §4.10 describes.
package stats

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// logEntry is the small JSON record appended to the per-hour log list.
type logEntry struct {
	ProductID int64                      `json:"productId"`
	Kind      model.ProductStatEventKind `json:"kind"`
	At        int64                      `json:"at"`
}

// Ingestor appends raw view/sale/wish events (§4.10's ingest path).
type Ingestor struct {
	store memstore.Client
}

func NewIngestor(store memstore.Client) *Ingestor {
	return &Ingestor{store: store}
}

// currentHour is the hour bucket key ("h = now / 3600s") the ingest path
// writes into.
func currentHour(now time.Time) string {
	return strconv.FormatInt(now.Unix()/3600, 10)
}

// Record appends the event to the current hour's log list and bumps the
// matching fast counter, as two independent memory-store writes (§4.10:
// "appended ... and, in parallel, increments a fast counter").
func (i *Ingestor) Record(ctx context.Context, productID int64, kind model.ProductStatEventKind) error {
	now := time.Now()

	entry := logEntry{ProductID: productID, Kind: kind, At: now.Unix()}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	logKey := memstore.StatLogKey(currentHour(now))
	if err := i.store.RPush(ctx, logKey, string(payload)); err != nil {
		return err
	}

	counterKey := memstore.StatRealtimeKey(string(kind), strconv.FormatInt(productID, 10))
	_, err = i.store.Incr(ctx, counterKey)
	return err
}

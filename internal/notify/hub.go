// Package notify implements the realtime notifier (component K): a
// per-user subscription registry held in memory, fanned out across
// instances over the memory store's pub/sub channel. Grounded on the
// lock manager's memstore-client-plus-background-goroutine shape
// (internal/lock.Manager), generalized from a lease to a broadcast.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// Hub holds every sink registered on this instance and fans notifications
// out to other instances via the memory store so a user connected to a
// different process still receives its pushes.
type Hub struct {
	store    memstore.Client
	instance string

	mu    sync.Mutex
	sinks map[int64][]*Sink
}

func NewHub(store memstore.Client) *Hub {
	return &Hub{
		store:    store,
		instance: uuid.NewString(),
		sinks:    make(map[int64][]*Sink),
	}
}

// Sink is one connected client's delivery channel, as returned by
// Subscribe. The caller (typically an SSE handler) ranges over Events
// until the connection closes, then calls Close.
type Sink struct {
	userID int64
	ch     chan model.Notification
	hub    *Hub
}

func (s *Sink) Events() <-chan model.Notification { return s.ch }

// Close unregisters the sink and closes its channel. Safe to call once.
func (s *Sink) Close() {
	s.hub.unsubscribe(s)
}

// Subscribe allocates a sink for userID. Buffered so a slow reader doesn't
// stall Publish; a full sink drops the notification rather than blocking
// the publisher (best-effort delivery per §4.12).
func (h *Hub) Subscribe(userID int64) *Sink {
	s := &Sink{userID: userID, ch: make(chan model.Notification, 16), hub: h}
	h.mu.Lock()
	h.sinks[userID] = append(h.sinks[userID], s)
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sinks := h.sinks[s.userID]
	for i, sk := range sinks {
		if sk == s {
			h.sinks[s.userID] = append(sinks[:i], sinks[i+1:]...)
			break
		}
	}
	if len(h.sinks[s.userID]) == 0 {
		delete(h.sinks, s.userID)
	}
	close(s.ch)
}

func (h *Hub) deliverLocal(n model.Notification) {
	h.mu.Lock()
	sinks := append([]*Sink(nil), h.sinks[n.UserID]...)
	h.mu.Unlock()

	for _, s := range sinks {
		select {
		case s.ch <- n:
		default:
			log.Warn().Int64("user_id", n.UserID).Str("type", string(n.Type)).Msg("notification sink full, dropping")
		}
	}
}

// envelope wraps a notification with the publishing instance's id so Run
// can ignore its own broadcasts (they were already delivered locally by
// Publish) instead of double-delivering them.
type envelope struct {
	Origin       string             `json:"origin"`
	Notification model.Notification `json:"notification"`
}

// Publish delivers n to any sink registered on this instance and
// broadcasts it to every other instance over the memory store.
func (h *Hub) Publish(ctx context.Context, n model.Notification) error {
	h.deliverLocal(n)

	payload, err := json.Marshal(envelope{Origin: h.instance, Notification: n})
	if err != nil {
		return err
	}
	return h.store.Publish(ctx, memstore.NotifyChannel(), string(payload))
}

// Run subscribes to the cross-instance channel and delivers remote
// notifications to local sinks until ctx is cancelled. Start once per
// process as a background goroutine at boot.
func (h *Hub) Run(ctx context.Context) {
	sub := h.store.Subscribe(ctx, memstore.NotifyChannel())
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Channel():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				log.Warn().Err(err).Msg("notify: discarding malformed broadcast")
				continue
			}
			if env.Origin == h.instance {
				continue
			}
			h.deliverLocal(env.Notification)
		}
	}
}

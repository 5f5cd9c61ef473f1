package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/shopsaga/order-core/internal/notify"
)

// keepAliveInterval bounds how long a proxy can sit on an idle SSE
// connection before deciding it's dead.
const keepAliveInterval = 15 * time.Second

// NotifyHandler serves the realtime notification stream (component K,
// §4.12) over SSE.
type NotifyHandler struct {
	hub *notify.Hub
}

func NewNotifyHandler(hub *notify.Hub) *NotifyHandler {
	return &NotifyHandler{hub: hub}
}

// Subscribe handles GET /sse/subscribe/:userId. It streams a `connected`
// event immediately, then one event per notification for as long as the
// client stays connected.
func (h *NotifyHandler) Subscribe(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: userId must be a number"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	sink := h.hub.Subscribe(userID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sink.Close()

		writeEvent(w, "connected", fiber.Map{"userId": userID})
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case n, ok := <-sink.Events():
				if !ok {
					return
				}
				writeEvent(w, string(n.Type), n.Data)
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/hackvento/portal-api/internal/models"
)

type eventSubscriber interface {
	Subscribe() (string, <-chan models.Event, func())
}

// EventsHandler exposes the live-update stream over Server-Sent Events.
type EventsHandler struct {
	events eventSubscriber
}

// NewEventsHandler constructs EventsHandler.
func NewEventsHandler(events eventSubscriber) *EventsHandler {
	return &EventsHandler{events: events}
}

// Stream subscribes the caller and pushes events until the client
// disconnects or the observer is pruned. Disconnection is a non-blocking
// unsubscribe; no in-flight mutation is affected.
func (h *EventsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	_, ch, cancel := h.events.Subscribe()
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

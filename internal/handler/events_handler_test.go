package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/hackvento/portal-api/internal/models"
)

type mockEventSubscriber struct {
	events    []models.Event
	cancelled bool
}

func (m *mockEventSubscriber) Subscribe() (string, <-chan models.Event, func()) {
	ch := make(chan models.Event, len(m.events))
	for _, event := range m.events {
		ch <- event
	}
	close(ch)
	return "observer-1", ch, func() { m.cancelled = true }
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's
// Context.Stream requires, which httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestEventsHandlerStream(t *testing.T) {
	subscriber := &mockEventSubscriber{events: []models.Event{
		{Type: models.EventConnected, Data: map[string]interface{}{"observerId": "observer-1"}, Timestamp: time.Now().UTC()},
		{Type: models.EventRegistrationCreated, Data: &models.Snapshot{}, Timestamp: time.Now().UTC()},
	}}
	h := NewEventsHandler(subscriber)
	r := gin.New()
	r.GET("/events", h.Stream)

	w := newCloseNotifyRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	assert.Contains(t, body, "event:message")
	assert.Contains(t, body, models.EventConnected)
	assert.Contains(t, body, models.EventRegistrationCreated)
	assert.True(t, subscriber.cancelled, "stream must unsubscribe on exit")
}

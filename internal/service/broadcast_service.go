package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/pkg/config"
	"github.com/hackvento/portal-api/pkg/jobs"
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
}

// BroadcastService maintains the set of live-update observers and fans out
// state-change events to them. Fan-out runs on a single background worker so
// the mutation path never blocks on a slow observer; delivery to each
// observer is a non-blocking send, and an observer that cannot keep up is
// dropped without affecting the others.
type BroadcastService struct {
	mu        sync.RWMutex
	observers map[string]chan models.Event

	source    snapshotSource
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	heartbeat time.Duration
	buffer    int
	snapCtx   time.Duration
}

// NewBroadcastService constructs the broadcaster.
func NewBroadcastService(source snapshotSource, cfg config.EventsConfig, metrics *MetricsService, logger *zap.Logger) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 8
	}
	s := &BroadcastService{
		observers: make(map[string]chan models.Event),
		source:    source,
		metrics:   metrics,
		logger:    logger,
		heartbeat: heartbeat,
		buffer:    buffer,
		snapCtx:   5 * time.Second,
	}
	s.queue = jobs.NewQueue("broadcast", s.handleBroadcast, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 16,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the fan-out worker and the heartbeat loop.
func (s *BroadcastService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.heartbeatLoop(ctx)
}

// Stop drains the fan-out worker.
func (s *BroadcastService) Stop() {
	s.queue.Stop()
}

// Subscribe registers a new observer and returns its handle, its event
// channel, and a cancel function. The first frame on the channel is the
// connected event.
func (s *BroadcastService) Subscribe() (string, <-chan models.Event, func()) {
	id := uuid.NewString()
	ch := make(chan models.Event, s.buffer)
	ch <- models.Event{
		Type:      models.EventConnected,
		Data:      map[string]interface{}{"observerId": id},
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	s.observers[id] = ch
	count := len(s.observers)
	s.mu.Unlock()

	s.metrics.SetObserverCount(count)
	s.logger.Debug("observer subscribed", zap.String("observer_id", id), zap.Int("observers", count))
	return id, ch, func() { s.Unsubscribe(id) }
}

// Unsubscribe removes an observer. Safe to call repeatedly and concurrently
// with an in-flight broadcast.
func (s *BroadcastService) Unsubscribe(id string) {
	s.mu.Lock()
	ch, ok := s.observers[id]
	if ok {
		delete(s.observers, id)
	}
	count := len(s.observers)
	s.mu.Unlock()

	if !ok {
		return
	}
	close(ch)
	s.metrics.SetObserverCount(count)
	s.logger.Debug("observer unsubscribed", zap.String("observer_id", id), zap.Int("observers", count))
}

// Publish schedules a snapshot broadcast for the given event type. It is
// fire-and-forget: the triggering mutation has already committed, so a
// broadcast failure only gets logged.
func (s *BroadcastService) Publish(eventType string) {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: eventType})
	if err != nil {
		s.logger.Warn("broadcast dropped", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *BroadcastService) handleBroadcast(ctx context.Context, job jobs.Job) error {
	snapCtx, cancel := context.WithTimeout(ctx, s.snapCtx)
	defer cancel()

	snapshot, err := s.source.Snapshot(snapCtx)
	if err != nil {
		s.logger.Warn("snapshot for broadcast failed", zap.String("event_type", job.Type), zap.Error(err))
		return err
	}
	s.deliver(models.Event{Type: job.Type, Data: snapshot, Timestamp: time.Now().UTC()})
	s.metrics.RecordBroadcast()
	return nil
}

// deliver pushes the event to every observer without blocking. The read
// lock is held across the sweep: channels are only closed under the write
// lock, so a send can never race a close. Observers with a full channel are
// pruned after the sweep.
func (s *BroadcastService) deliver(event models.Event) {
	s.mu.RLock()
	var stale []string
	for id, ch := range s.observers {
		select {
		case ch <- event:
		default:
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.logger.Warn("observer lagging, pruning", zap.String("observer_id", id))
		s.Unsubscribe(id)
	}
}

func (s *BroadcastService) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.deliver(models.Event{
				Type:      models.EventHeartbeat,
				Data:      map[string]interface{}{},
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

// ObserverCount reports the current observer set size.
func (s *BroadcastService) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

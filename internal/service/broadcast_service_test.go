package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/pkg/config"
)

type mockSnapshotSource struct {
	snapshot *models.Snapshot
	err      error
}

func (m *mockSnapshotSource) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

func newTestBroadcaster(t *testing.T, source snapshotSource, cfg config.EventsConfig) *BroadcastService {
	t.Helper()
	svc := NewBroadcastService(source, cfg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc
}

func receiveEvent(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed before event arrived")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func TestBroadcastServiceSubscribeSendsConnected(t *testing.T) {
	svc := newTestBroadcaster(t, &mockSnapshotSource{snapshot: &models.Snapshot{}}, config.EventsConfig{})

	id, ch, cancel := svc.Subscribe()
	defer cancel()

	event := receiveEvent(t, ch)
	assert.Equal(t, models.EventConnected, event.Type)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, id, data["observerId"])
	assert.Equal(t, 1, svc.ObserverCount())
}

func TestBroadcastServicePublishFansOutSnapshot(t *testing.T) {
	snapshot := &models.Snapshot{
		ProblemStatements: []models.ProblemStatementView{{}},
		Registrations:     []models.RegistrationDetail{{Registration: models.Registration{TeamNumber: "T1"}}},
	}
	svc := newTestBroadcaster(t, &mockSnapshotSource{snapshot: snapshot}, config.EventsConfig{})

	_, ch1, cancel1 := svc.Subscribe()
	defer cancel1()
	_, ch2, cancel2 := svc.Subscribe()
	defer cancel2()
	receiveEvent(t, ch1)
	receiveEvent(t, ch2)

	svc.Publish(models.EventRegistrationCreated)

	for _, ch := range []<-chan models.Event{ch1, ch2} {
		event := receiveEvent(t, ch)
		assert.Equal(t, models.EventRegistrationCreated, event.Type)
		got, ok := event.Data.(*models.Snapshot)
		require.True(t, ok)
		require.Len(t, got.Registrations, 1)
		assert.Equal(t, "T1", got.Registrations[0].TeamNumber)
	}
}

func TestBroadcastServicePrunesLaggingObserver(t *testing.T) {
	svc := newTestBroadcaster(t, &mockSnapshotSource{snapshot: &models.Snapshot{}}, config.EventsConfig{BufferSize: 1})

	// Never read: the connected event already fills the buffer.
	_, _, cancel := svc.Subscribe()
	defer cancel()
	require.Equal(t, 1, svc.ObserverCount())

	svc.Publish(models.EventRegistrationCreated)

	require.Eventually(t, func() bool {
		return svc.ObserverCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastServiceSnapshotFailureKeepsObservers(t *testing.T) {
	svc := newTestBroadcaster(t, &mockSnapshotSource{err: errors.New("store down")}, config.EventsConfig{})

	_, ch, cancel := svc.Subscribe()
	defer cancel()
	receiveEvent(t, ch)

	svc.Publish(models.EventRegistrationCreated)

	select {
	case event := <-ch:
		t.Fatalf("unexpected event after snapshot failure: %s", event.Type)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 1, svc.ObserverCount())
}

func TestBroadcastServiceHeartbeat(t *testing.T) {
	svc := newTestBroadcaster(t, &mockSnapshotSource{snapshot: &models.Snapshot{}}, config.EventsConfig{
		HeartbeatInterval: 20 * time.Millisecond,
	})

	_, ch, cancel := svc.Subscribe()
	defer cancel()
	receiveEvent(t, ch)

	event := receiveEvent(t, ch)
	assert.Equal(t, models.EventHeartbeat, event.Type)
}

func TestBroadcastServiceUnsubscribeIsIdempotent(t *testing.T) {
	svc := newTestBroadcaster(t, &mockSnapshotSource{snapshot: &models.Snapshot{}}, config.EventsConfig{})

	id, _, cancel := svc.Subscribe()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Unsubscribe(id)
		}()
	}
	wg.Wait()
	cancel()
	assert.Equal(t, 0, svc.ObserverCount())
}

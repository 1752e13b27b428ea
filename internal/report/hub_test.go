package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink { return &stubSink{} }

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func sampleEvent(stage Stage) Event {
	evt := Event{RunID: NewRunID(), TS: time.Now().UTC(), Stage: stage}
	switch stage {
	case StageSourceDone, StageSourceError, StageSourceSkipped:
		evt.Source = "ferc-news"
	case StageDocChange:
		evt.URL = "https://example.gov/doc"
		evt.Change = "ADDED"
	}
	return evt
}

// TestHubBatchBySize verifies the hub flushes once the batch limit is hit.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageSourceDone))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer flush kicks in for small batches.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageDocChange))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubFlushOnClose ensures Close drains buffered events and closes sinks.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageRunDone))
	require.NoError(t, hub.Close(context.Background()))

	batches := sink.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	require.True(t, sink.Closed())
}

// TestHubDiscardsInvalidEvents verifies validation rejects malformed events.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.Emit(Event{Stage: StageRunStart})                                       // no run id
	hub.Emit(Event{RunID: NewRunID(), TS: time.Now(), Stage: StageSourceDone})  // no source
	hub.Emit(Event{RunID: NewRunID(), TS: time.Now(), Stage: Stage("UNKNOWN")}) // bad stage
	require.NoError(t, hub.Close(context.Background()))

	require.Empty(t, sink.Batches())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := sampleEvent(StageDocChange)
	require.NoError(t, valid.Validate())

	missingChange := valid
	missingChange.Change = ""
	require.Error(t, missingChange.Validate())

	negativeDur := sampleEvent(StageRunDone)
	negativeDur.Dur = -time.Second
	require.Error(t, negativeDur.Validate())
}

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() ([][]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out, s.closed
}

func (s *recordingSink) stages() []Stage {
	batches, _ := s.snapshot()
	var out []Stage
	for _, b := range batches {
		for _, e := range b {
			out = append(out, e.Stage)
		}
	}
	return out
}

func checkEvent(runID uuid.UUID, name string, status vanity.Status) Event {
	return Event{
		RunID:  runID,
		TS:     time.Now(),
		Stage:  StageCheckDone,
		Record: vanity.CheckRecord{Candidate: name, Status: status, HTTPStatus: 200},
	}
}

func TestHubFlushesFullBatches(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(HubConfig{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	t.Cleanup(func() { require.NoError(t, hub.Close(context.Background())) })

	runID := uuid.New()
	hub.Emit(checkEvent(runID, "gamer123", vanity.StatusTaken))
	hub.Emit(checkEvent(runID, "steamfan", vanity.StatusTaken))

	require.Eventually(t, func() bool {
		b, _ := sink.snapshot()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesOnTicker(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(HubConfig{MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	t.Cleanup(func() { require.NoError(t, hub.Close(context.Background())) })

	hub.Emit(Event{RunID: uuid.New(), TS: time.Now(), Stage: StageRunStart, Total: 3})
	require.Eventually(t, func() bool {
		b, _ := sink.snapshot()
		return len(b) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubFlushesTerminalEventsImmediately(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(HubConfig{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, sink)
	t.Cleanup(func() { require.NoError(t, hub.Close(context.Background())) })

	runID := uuid.New()
	hub.Emit(Event{RunID: runID, TS: time.Now(), Stage: StageRunStart, Total: 1})
	hub.Emit(checkEvent(runID, "rareusername", vanity.StatusAvailable))
	hub.Emit(Event{RunID: runID, TS: time.Now(), Stage: StageRunDone, State: RunState{RunID: runID, Checked: 1, Available: 1}})

	require.Eventually(t, func() bool {
		return len(sink.stages()) == 3
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []Stage{StageRunStart, StageCheckDone, StageRunDone}, sink.stages())
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	// No consumer goroutine and an unbuffered channel: every send must fall through.
	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	for range 3 {
		hub.Emit(checkEvent(uuid.New(), "gamer123", vanity.StatusTaken))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
	// The first drop is reported in the warning and resets the counter.
	require.EqualValues(t, 2, hub.Dropped())
}

func TestHubCloseDrainsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(HubConfig{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, sink)
	runID := uuid.New()
	hub.Emit(checkEvent(runID, "gamer123", vanity.StatusTaken))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	batches, closed := sink.snapshot()
	require.Len(t, batches, 1)
	require.True(t, closed)

	hub.Emit(checkEvent(runID, "steamfan", vanity.StatusTaken))
	batches, _ = sink.snapshot()
	require.Len(t, batches, 1, "emit after close must be ignored")
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(HubConfig{MaxBatchWait: time.Hour}, sink)
	hub.Emit(Event{Stage: StageRunStart, TS: time.Now()})
	hub.Emit(Event{RunID: uuid.New(), Stage: StageCheckDone, TS: time.Now()})
	require.NoError(t, hub.Close(context.Background()))
	batches, _ := sink.snapshot()
	require.Empty(t, batches)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	require.NoError(t, checkEvent(runID, "gamer123", vanity.StatusTaken).Validate())
	require.NoError(t, Event{RunID: runID, TS: time.Now(), Stage: StageRunError, Note: "source unavailable"}.Validate())

	cases := map[string]Event{
		"unknown stage":    {RunID: runID, TS: time.Now(), Stage: "NOPE"},
		"negative dur":     {RunID: runID, TS: time.Now(), Stage: StageRunDone, Dur: -time.Second},
		"zero timestamp":   {RunID: runID, Stage: StageRunDone},
		"check w/o status": {RunID: runID, TS: time.Now(), Stage: StageCheckDone, Record: vanity.CheckRecord{Candidate: "x"}},
	}
	for name, evt := range cases {
		require.Error(t, evt.Validate(), name)
	}
}

func TestStageTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, StageRunStart.Terminal())
	require.False(t, StageCheckDone.Terminal())
	require.True(t, StageRunDone.Terminal())
	require.True(t, StageRunError.Terminal())
}

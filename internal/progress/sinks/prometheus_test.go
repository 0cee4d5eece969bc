package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 3},
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, Record: vanity.CheckRecord{
			Candidate: "alpha", Status: vanity.StatusAvailable, HTTPStatus: 404, Attempts: 1,
		}},
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, Record: vanity.CheckRecord{
			Candidate: "bravo", Status: vanity.StatusTaken, HTTPStatus: 200, Attempts: 3,
		}},
		{RunID: runID, TS: now, Stage: progress.StageCheckDone, Record: vanity.CheckRecord{
			Candidate: "charlie", Status: vanity.StatusAvailable, HTTPStatus: 404, Attempts: 1,
		}},
		{RunID: runID, TS: now.Add(15 * time.Second), Stage: progress.StageRunDone, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsStarted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")), 1e-9)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")), 1e-9)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsRunning), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.checks.WithLabelValues("available")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.checks.WithLabelValues("taken")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.checkAttempts, "vanity_check_attempts"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

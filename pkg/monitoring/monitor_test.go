/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package monitoring

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/alerts"
	"github.com/mfreeman451/stackradar/pkg/collector"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var base = time.Unix(1_700_000_000, 0)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memSample(v float64, at time.Duration) models.ResourceSample {
	return models.ResourceSample{
		Kind:      models.KindMemory,
		Metric:    "percent",
		Value:     v,
		Unit:      "%",
		Timestamp: base.Add(at),
	}
}

func memoryRule(duration time.Duration) models.ThresholdRule {
	return models.ThresholdRule{
		Kind:      models.KindMemory,
		Metric:    "percent",
		Direction: models.Above,
		Warning:   70,
		Critical:  85,
		Duration:  duration,
	}
}

func newTestMonitor(rules []models.ThresholdRule, clock *time.Time) (*Monitor, *alerts.Dispatcher) {
	d := alerts.NewDispatcher(config.AlertsConfig{Cooldown: config.Duration(5 * time.Minute)}, quietLogger())
	m := NewMonitor(config.MonitorConfig{CheckInterval: config.Duration(time.Second), HistorySize: 100},
		nil, rules, d, nil, quietLogger(), WithClock(func() time.Time { return *clock }))

	return m, d
}

func TestSustainedViolationRaisesOneCriticalAlert(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(2 * time.Second)}, &now)
	ctx := context.Background()

	for i := 0; i <= 3; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		m.Ingest(ctx, []models.ResourceSample{memSample(90, time.Duration(i)*time.Second)})

		if i < 2 {
			assert.Nil(t, d.ActiveFor("memory.percent"), "not sustained yet at t=%d", i)
		}
	}

	history := d.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.SeverityCritical, history[0].Severity)
	assert.InDelta(t, 90.0, history[0].ObservedValue, 0)
	assert.InDelta(t, 85.0, history[0].ThresholdValue, 0)
	assert.Equal(t, "memory.percent_1700000002", history[0].ID)
}

func TestSustainedViolationWithDriftingTimestamps(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(2 * time.Second)}, &now)
	ctx := context.Background()

	// each cycle lands 10ms later than the ideal tick
	at := func(i int) time.Duration {
		return time.Duration(i)*time.Second + time.Duration(i)*10*time.Millisecond
	}

	for i := 0; i <= 10; i++ {
		now = base.Add(at(i))
		m.Ingest(ctx, []models.ResourceSample{memSample(90, at(i))})

		switch {
		case i < 2:
			assert.Nil(t, d.ActiveFor("memory.percent"), "not sustained yet at cycle %d", i)
		case i == 2:
			require.NotNil(t, d.ActiveFor("memory.percent"), "sustained for 2.02s at cycle 2")
		}
	}

	history := d.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.SeverityCritical, history[0].Severity)
}

func TestSustainedWindowNotYetElapsed(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(2 * time.Second)}, &now)
	ctx := context.Background()

	// cycles arriving early: 1.98s of violation is short of 2s
	for i, at := range []time.Duration{0, 990 * time.Millisecond, 1980 * time.Millisecond} {
		now = base.Add(at)
		m.Ingest(ctx, []models.ResourceSample{memSample(90, at)})
		assert.Nil(t, d.ActiveFor("memory.percent"), "cycle %d", i)
	}

	now = base.Add(2970 * time.Millisecond)
	m.Ingest(ctx, []models.ResourceSample{memSample(90, 2970*time.Millisecond)})
	assert.NotNil(t, d.ActiveFor("memory.percent"))
}

func TestPollIntervalToleratesEarlyCycles(t *testing.T) {
	rule := memoryRule(0)
	rule.PollInterval = time.Second

	now := base
	m, d := newTestMonitor([]models.ThresholdRule{rule}, &now)
	ctx := context.Background()

	now = base.Add(50 * time.Millisecond)
	m.Ingest(ctx, []models.ResourceSample{memSample(75, 50*time.Millisecond)})
	require.NotNil(t, d.ActiveFor("memory.percent"))

	// 960ms later: a cycle that collected faster than the previous one
	now = base.Add(1010 * time.Millisecond)
	m.Ingest(ctx, []models.ResourceSample{memSample(40, 1010*time.Millisecond)})
	assert.Nil(t, d.ActiveFor("memory.percent"), "recovery evaluated on the next cycle")
}

func TestPollIntervalSkipsCyclesWithinInterval(t *testing.T) {
	rule := memoryRule(0)
	rule.PollInterval = 5 * time.Second

	now := base
	m, d := newTestMonitor([]models.ThresholdRule{rule}, &now)
	ctx := context.Background()

	m.Ingest(ctx, []models.ResourceSample{memSample(40, 0)})

	now = base.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(75, time.Second)})
	assert.Nil(t, d.ActiveFor("memory.percent"), "rule not due until 5s after its last evaluation")

	now = base.Add(5 * time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(75, 5*time.Second)})
	assert.NotNil(t, d.ActiveFor("memory.percent"))
}

func TestBriefSpikeDoesNotAlert(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(2 * time.Second)}, &now)
	ctx := context.Background()

	for i, v := range []float64{90, 90, 50, 90, 90} {
		now = base.Add(time.Duration(i) * time.Second)
		m.Ingest(ctx, []models.ResourceSample{memSample(v, time.Duration(i)*time.Second)})
	}

	assert.Empty(t, d.History())
}

func TestEscalationAndResolution(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(0)}, &now)
	ctx := context.Background()

	m.Ingest(ctx, []models.ResourceSample{memSample(75, 0)})
	require.NotNil(t, d.ActiveFor("memory.percent"))
	assert.Equal(t, models.SeverityWarning, d.ActiveFor("memory.percent").Severity)

	now = now.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(88, time.Second)})
	assert.Equal(t, models.SeverityCritical, d.ActiveFor("memory.percent").Severity)

	now = now.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(72, 2*time.Second)})
	assert.Equal(t, models.SeverityCritical, d.ActiveFor("memory.percent").Severity, "de-escalation keeps the alert")

	now = now.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(40, 3*time.Second)})
	assert.Nil(t, d.ActiveFor("memory.percent"))

	history := d.History()
	require.Len(t, history, 3)
	assert.True(t, history[2].Resolved)
}

func TestBelowRuleRaisesAndResolves(t *testing.T) {
	rule := models.ThresholdRule{
		Kind:      models.KindMemory,
		Metric:    "available_gb",
		Direction: models.Below,
		Warning:   4,
		Critical:  2,
		Duration:  0,
	}

	now := base
	m, d := newTestMonitor([]models.ThresholdRule{rule}, &now)
	ctx := context.Background()

	sample := func(v float64) []models.ResourceSample {
		return []models.ResourceSample{{Kind: models.KindMemory, Metric: "available_gb", Value: v, Unit: "GB", Timestamp: now}}
	}

	m.Ingest(ctx, sample(1.5))

	active := d.ActiveFor("memory.available_gb")
	require.NotNil(t, active)
	assert.Equal(t, models.SeverityCritical, active.Severity)
	assert.Contains(t, active.Message, "below critical threshold of 2.00GB")

	now = now.Add(time.Second)
	m.Ingest(ctx, sample(8))
	assert.Nil(t, d.ActiveFor("memory.available_gb"))
}

func TestCooldownSuppressesReRaise(t *testing.T) {
	now := base
	m, d := newTestMonitor([]models.ThresholdRule{memoryRule(0)}, &now)
	ctx := context.Background()

	m.Ingest(ctx, []models.ResourceSample{memSample(75, 0)})
	now = now.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(50, time.Second)})
	now = now.Add(time.Second)
	m.Ingest(ctx, []models.ResourceSample{memSample(75, 2*time.Second)})

	assert.Nil(t, d.ActiveFor("memory.percent"))
	assert.Len(t, d.History(), 2)
}

func TestHistoryAndStatistics(t *testing.T) {
	now := base.Add(3 * time.Second)
	m, _ := newTestMonitor(nil, &now)

	var batch []models.ResourceSample
	for i, v := range []float64{1, 2, 3, 4} {
		batch = append(batch, memSample(v, time.Duration(i)*time.Second))
	}

	m.Ingest(context.Background(), batch)

	assert.Len(t, m.History(models.KindMemory, "percent", 0), 4)
	assert.Len(t, m.History(models.KindMemory, "percent", time.Second), 2)

	st := m.Statistics(models.KindMemory, "percent", 0)
	assert.Equal(t, 4, st.Count)
	assert.InDelta(t, 4.0, st.Current, 0)
	assert.InDelta(t, 2.5, st.Median, 1e-9)

	assert.Equal(t, models.Statistics{}, m.Statistics(models.KindGPU, "utilization", 0))
	assert.Contains(t, m.Current(), "memory.percent")
}

func TestPollLoopSkipsFailingCollectors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := collector.NewMockSource(ctrl)
	src.EXPECT().
		Sample(gomock.Any(), models.KindGPU, "utilization").
		Return(models.ResourceSample{}, collector.ErrUnavailable).
		MinTimes(1)
	src.EXPECT().
		Sample(gomock.Any(), models.KindMemory, "percent").
		DoAndReturn(func(context.Context, models.ResourceKind, string) (models.ResourceSample, error) {
			return models.ResourceSample{Kind: models.KindMemory, Metric: "percent", Value: 42, Timestamp: time.Now()}, nil
		}).
		MinTimes(1)

	cfg := config.MonitorConfig{
		CheckInterval: config.Duration(10 * time.Millisecond),
		HistorySize:   10,
		Metrics: []config.MetricConfig{
			{Resource: models.KindGPU, Metric: "utilization"},
			{Resource: models.KindMemory, Metric: "percent"},
		},
	}

	m := NewMonitor(cfg, src, nil, nil, nil, quietLogger())

	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), errAlreadyRunning)

	require.Eventually(t, func() bool {
		return len(m.History(models.KindMemory, "percent", 0)) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Stop(context.Background()), "second stop is a no-op")

	assert.Empty(t, m.History(models.KindGPU, "utilization", 0))
	assert.Equal(t, []string{"gpu.utilization", "memory.percent"}, m.Metrics())
}

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

// Package monitoring pkg/monitoring/monitor.go
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/collector"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/metrics"
	"github.com/mfreeman451/stackradar/pkg/models"
)

const defaultStopTimeout = 5 * time.Second

// Monitor polls a collector.Source on a fixed interval, keeps per-metric
// history and turns sustained rule violations into alerts.
type Monitor struct {
	config     config.MonitorConfig
	source     collector.Source
	rules      []models.ThresholdRule
	dispatcher Dispatcher
	store      metrics.HistoryStore
	recorder   metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time

	evalMu   sync.Mutex
	lastEval map[string]time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the clock used for windows and alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithRecorder exports every sample and the active alert counts.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// NewMonitor creates a monitor. A nil store gets a fresh metrics.Manager
// sized by cfg.HistorySize.
func NewMonitor(
	cfg config.MonitorConfig,
	source collector.Source,
	rules []models.ThresholdRule,
	dispatcher Dispatcher,
	store metrics.HistoryStore,
	logger *slog.Logger,
	opts ...Option,
) *Monitor {
	if store == nil {
		store = metrics.NewManager(cfg.HistorySize)
	}

	m := &Monitor{
		config:     cfg,
		source:     source,
		rules:      rules,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger.With("component", "monitor"),
		now:        time.Now,
		lastEval:   make(map[string]time.Time),
	}

	for _, o := range opts {
		o(m)
	}

	return m
}

// Start launches the poll loop. The first cycle runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return errAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(loopCtx, m.done)

	m.logger.Info("Resource monitor started",
		"interval", m.config.CheckInterval.Std(),
		"metrics", len(m.config.Metrics),
		"rules", len(m.rules))

	return nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.CheckInterval.Std())
	defer ticker.Stop()

	m.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

// Stop halts the poll loop and waits for it to exit, bounded by the
// configured stop timeout and ctx. Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	cancel()

	timeout := m.config.StopTimeout.Std()
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		m.logger.Info("Resource monitor stopped")

		return nil
	case <-timer.C:
		return errStopTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errStopTimeout, ctx.Err())
	}
}

// collect samples every tracked metric once. A failing collector only skips
// its own metric.
func (m *Monitor) collect(ctx context.Context) {
	samples := make([]models.ResourceSample, 0, len(m.config.Metrics))

	for _, mc := range m.config.Metrics {
		if ctx.Err() != nil {
			return
		}

		s, err := m.source.Sample(ctx, mc.Resource, mc.Metric)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, collector.ErrUnavailable) {
				level = slog.LevelDebug
			}

			m.logger.Log(ctx, level, "Metric collection failed",
				"metric", models.MetricKey(mc.Resource, mc.Metric), "error", err)

			if m.recorder != nil {
				m.recorder.RecordCollectError(mc.Resource, mc.Metric)
			}

			continue
		}

		samples = append(samples, s)
	}

	m.Ingest(ctx, samples)
}

// Ingest records samples and evaluates every rule watching their metrics.
// The poll loop uses it; callers with their own sampling can too.
func (m *Monitor) Ingest(ctx context.Context, samples []models.ResourceSample) {
	touched := make(map[string]struct{}, len(samples))

	for i := range samples {
		m.store.Add(samples[i])
		touched[samples[i].Key()] = struct{}{}

		if m.recorder != nil {
			m.recorder.RecordSample(&samples[i])
		}
	}

	for i := range m.rules {
		rule := &m.rules[i]
		if _, ok := touched[rule.Key()]; !ok {
			continue
		}

		if !m.due(rule) {
			continue
		}

		m.evaluate(ctx, rule)
	}

	if m.recorder != nil && m.dispatcher != nil {
		m.recorder.SetActiveAlerts(m.dispatcher.Counts())
	}
}

// due applies a rule's own poll interval on top of the monitor interval.
// Half a check interval of slack absorbs cycles that collect faster than the
// previous one.
func (m *Monitor) due(rule *models.ThresholdRule) bool {
	if rule.PollInterval <= 0 {
		return true
	}

	now := m.now()
	slack := m.config.CheckInterval.Std() / 2

	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	if last, ok := m.lastEval[rule.Key()]; ok && now.Sub(last) < rule.PollInterval-slack {
		return false
	}

	m.lastEval[rule.Key()] = now

	return true
}

func (m *Monitor) evaluate(ctx context.Context, rule *models.ThresholdRule) {
	if m.dispatcher == nil {
		return
	}

	key := rule.Key()

	latest := m.store.Last(key)
	if latest == nil {
		return
	}

	// The streak has to reach back past latest-duration, and sample timestamps
	// drift with collection time, so the whole retained history is evaluated.
	decision := Evaluate(rule, m.store.History(key, time.Time{}))
	active := m.dispatcher.ActiveFor(key)

	if decision.Severity == models.SeverityNone {
		if active != nil && Recovered(rule, latest) {
			m.dispatcher.Resolve(ctx, key)
		}

		return
	}

	if active != nil && decision.Severity <= active.Severity {
		return
	}

	now := m.now()

	m.dispatcher.Dispatch(ctx, &models.Alert{
		ID:             models.AlertID(key, now),
		RuleKey:        key,
		Kind:           rule.Kind,
		Metric:         rule.Metric,
		Severity:       decision.Severity,
		ObservedValue:  decision.Sample.Value,
		ThresholdValue: decision.Threshold,
		Direction:      rule.Direction,
		Unit:           decision.Sample.Unit,
		CreatedAt:      now,
	})
}

// Current returns the newest sample of every metric.
func (m *Monitor) Current() map[string]models.ResourceSample {
	return m.store.Latest()
}

// History returns the samples of one metric within window of now (zero: all).
func (m *Monitor) History(kind models.ResourceKind, metric string, window time.Duration) []models.ResourceSample {
	var since time.Time
	if window > 0 {
		since = m.now().Add(-window)
	}

	return m.store.History(models.MetricKey(kind, metric), since)
}

// Statistics summarises History(kind, metric, window).
func (m *Monitor) Statistics(kind models.ResourceKind, metric string, window time.Duration) models.Statistics {
	return metrics.Compute(m.History(kind, metric, window))
}

// Metrics lists the tracked metric keys.
func (m *Monitor) Metrics() []string {
	keys := make([]string, 0, len(m.config.Metrics))
	for _, mc := range m.config.Metrics {
		keys = append(keys, models.MetricKey(mc.Resource, mc.Metric))
	}

	return keys
}

// Rules returns a copy of the configured rules.
func (m *Monitor) Rules() []models.ThresholdRule {
	return append([]models.ThresholdRule(nil), m.rules...)
}

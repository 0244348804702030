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

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
)

const maxAccessHistory = 256

// EvictionRecorder is told about every evicted model and the tracked set size.
// metrics.Exporter implements it.
type EvictionRecorder interface {
	RecordEviction(sev models.Severity)
	SetModelsLoaded(n int)
}

// Manager tracks loaded models and evicts the least valuable ones when the
// host runs short of memory.
type Manager struct {
	config   config.MemoryConfig
	probe    Probe
	unloader Unloader
	recorder EvictionRecorder
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)

	mu           sync.Mutex
	entries      map[string]*models.ModelEntry
	evictions    int
	lastEviction *time.Time

	// pressureMu serialises OnPressure so two alerts never evict concurrently.
	pressureMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for timestamps and priorities.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder exports eviction counts.
func WithRecorder(r EvictionRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a model memory manager.
func NewManager(cfg config.MemoryConfig, probe Probe, unloader Unloader, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		config:   cfg,
		probe:    probe,
		unloader: unloader,
		logger:   logger.With("component", "memory"),
		now:      time.Now,
		sleep:    sleepCtx,
		entries:  make(map[string]*models.ModelEntry),
	}

	for _, o := range opts {
		o(m)
	}

	return m
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Register starts tracking a freshly loaded model.
func (m *Manager) Register(entry models.ModelEntry) error {
	if entry.Name == "" || entry.SizeGB < 0 {
		return errInvalidEntry
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.Name]; ok {
		return fmt.Errorf("%w: %s", ErrModelExists, entry.Name)
	}

	if entry.LoadedAt.IsZero() {
		entry.LoadedAt = now
	}

	if entry.LastUsedAt.IsZero() {
		entry.LastUsedAt = entry.LoadedAt
	}

	entry.Accesses = append([]time.Time{entry.LastUsedAt}, entry.Accesses...)

	if m.config.DynamicPriority {
		entry.Priority = ComputePriority(entry.Accesses, entry.SizeGB, now, m.config.Weights)
	}

	m.entries[entry.Name] = &entry
	m.setLoaded()

	m.logger.Info("Model registered",
		"model", entry.Name, "service", entry.Service, "size_gb", entry.SizeGB, "priority", entry.Priority)

	return nil
}

// Touch records a use of name.
func (m *Manager) Touch(name string) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	e.LastUsedAt = now
	e.Accesses = append(e.Accesses, now)

	if len(e.Accesses) > maxAccessHistory {
		e.Accesses = append([]time.Time(nil), e.Accesses[len(e.Accesses)-maxAccessHistory:]...)
	}

	if m.config.DynamicPriority {
		e.Priority = ComputePriority(e.Accesses, e.SizeGB, now, m.config.Weights)
	}

	return nil
}

// Unregister stops tracking name without unloading it.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		return false
	}

	delete(m.entries, name)
	m.setLoaded()

	return true
}

// setLoaded must be called with mu held.
func (m *Manager) setLoaded() {
	if m.recorder != nil {
		m.recorder.SetModelsLoaded(len(m.entries))
	}
}

// Entries returns the tracked models in eviction order.
func (m *Manager) Entries() []models.ModelEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rankedLocked()
}

// rankedLocked sorts ascending by (priority, last use). Dynamic priorities
// are refreshed first since recency decays between touches.
func (m *Manager) rankedLocked() []models.ModelEntry {
	now := m.now()
	out := make([]models.ModelEntry, 0, len(m.entries))

	for _, e := range m.entries {
		if m.config.DynamicPriority {
			e.Priority = ComputePriority(e.Accesses, e.SizeGB, now, m.config.Weights)
		}

		cp := *e
		cp.Accesses = nil
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}

		if !out[i].LastUsedAt.Equal(out[j].LastUsedAt) {
			return out[i].LastUsedAt.Before(out[j].LastUsedAt)
		}

		return out[i].Name < out[j].Name
	})

	return out
}

// Stats returns a snapshot. FreeGB is zero when the probe fails.
func (m *Manager) Stats(ctx context.Context) models.MemoryStats {
	m.mu.Lock()
	st := models.MemoryStats{
		LoadedModels: len(m.entries),
		Evictions:    m.evictions,
	}

	for _, e := range m.entries {
		st.TotalSizeGB += e.SizeGB
	}

	if m.lastEviction != nil {
		t := *m.lastEviction
		st.LastEviction = &t
	}
	m.mu.Unlock()

	if m.probe != nil {
		if free, err := m.probe.FreeGB(ctx); err == nil {
			st.FreeGB = free
		}
	}

	return st
}

// Target returns how many GB a pressure level must free. Emergency returns
// zero because it evicts everything.
func (m *Manager) Target(sev models.Severity) float64 {
	switch sev {
	case models.SeverityWarning:
		return m.config.WarningTargetGB
	case models.SeverityCritical:
		return m.config.CriticalTargetGB
	case models.SeverityNone, models.SeverityEmergency:
		return 0
	default:
		return 0
	}
}

// OnPressure responds to a memory pressure level. Warning and Critical evict
// in rank order until the target amount has been freed; Emergency evicts
// everything, asks every owning service to free memory and forces a GC.
func (m *Manager) OnPressure(ctx context.Context, sev models.Severity) models.EvictionReport {
	m.pressureMu.Lock()
	defer m.pressureMu.Unlock()

	report := models.EvictionReport{Severity: sev, TargetGB: m.Target(sev)}

	switch sev {
	case models.SeverityNone:
		report.TargetMet = true

		return report
	case models.SeverityEmergency:
		return m.emergency(ctx, report)
	case models.SeverityWarning, models.SeverityCritical:
	}

	initial, probeErr := m.freeGB(ctx)
	if probeErr != nil {
		m.logger.Warn("Free memory probe failed, using projected values", "error", probeErr)
	}

	report.FreeGB = initial
	report.TargetMet = report.TargetGB <= 0

	for !report.TargetMet {
		if ctx.Err() != nil {
			break
		}

		entry, ok := m.evictNext(sev)
		if !ok {
			break
		}

		m.unload(ctx, entry)

		report.Evicted = append(report.Evicted, entry.Name)
		report.FreedGB += entry.SizeGB

		m.sleep(ctx, m.config.SettleInterval.Std())

		free, err := m.freeGB(ctx)
		if err != nil || probeErr != nil {
			free = initial + report.FreedGB
		}

		report.FreeGB = free

		if free-initial >= report.TargetGB {
			report.TargetMet = true
		}
	}

	m.logger.Info("Memory pressure handled",
		"severity", sev, "evicted", report.Evicted, "freed_gb", report.FreedGB,
		"free_gb", report.FreeGB, "target_gb", report.TargetGB, "target_met", report.TargetMet)

	return report
}

func (m *Manager) emergency(ctx context.Context, report models.EvictionReport) models.EvictionReport {
	services := make(map[string]struct{})

	for {
		entry, ok := m.evictNext(models.SeverityEmergency)
		if !ok {
			break
		}

		m.unload(ctx, entry)

		report.Evicted = append(report.Evicted, entry.Name)
		report.FreedGB += entry.SizeGB

		if entry.Service != "" {
			services[entry.Service] = struct{}{}
		}
	}

	if m.unloader != nil {
		for svc := range services {
			if err := m.unloader.FreeMemory(ctx, svc); err != nil {
				m.logger.Warn("Service memory cleanup failed", "service", svc, "error", err)
			}
		}
	}

	runtime.GC()
	debug.FreeOSMemory()

	if free, err := m.freeGB(ctx); err == nil {
		report.FreeGB = free
	}

	report.TargetMet = true

	m.logger.Warn("Emergency eviction complete",
		"evicted", report.Evicted, "freed_gb", report.FreedGB, "services", len(services))

	return report
}

// evictNext removes the lowest ranked entry from tracking.
func (m *Manager) evictNext(sev models.Severity) (models.ModelEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ranked := m.rankedLocked()
	if len(ranked) == 0 {
		return models.ModelEntry{}, false
	}

	victim := ranked[0]
	now := m.now()

	delete(m.entries, victim.Name)
	m.evictions++
	m.lastEviction = &now

	if m.recorder != nil {
		m.recorder.RecordEviction(sev)
	}

	m.setLoaded()

	return victim, true
}

// unload runs outside the lock. Failure leaves the entry untracked.
func (m *Manager) unload(ctx context.Context, e models.ModelEntry) {
	m.logger.Info("Evicting model", "model", e.Name, "service", e.Service, "size_gb", e.SizeGB, "priority", e.Priority)

	if m.unloader == nil || e.Service == "" {
		return
	}

	if err := m.unloader.Unload(ctx, e.Service, e.Name); err != nil {
		m.logger.Warn("Model unload failed, entry dropped anyway", "model", e.Name, "service", e.Service, "error", err)
	}
}

func (m *Manager) freeGB(ctx context.Context) (float64, error) {
	if m.probe == nil {
		return 0, errNoProbe
	}

	return m.probe.FreeGB(ctx)
}

// UnloadAll unloads every tracked model. Used as a shutdown task.
func (m *Manager) UnloadAll(ctx context.Context) error {
	var n int

	for {
		m.mu.Lock()
		ranked := m.rankedLocked()

		if len(ranked) == 0 {
			m.mu.Unlock()

			break
		}

		delete(m.entries, ranked[0].Name)
		m.setLoaded()
		m.mu.Unlock()

		m.unload(ctx, ranked[0])
		n++

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("unload interrupted after %d models: %w", n, err)
		}
	}

	m.logger.Info("All models unloaded", "count", n)

	return nil
}

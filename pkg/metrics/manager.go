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

package metrics

import (
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// Manager keeps one RingBuffer per metric key. The map lock only guards
// buffer creation and lookup; each buffer has its own lock.
type Manager struct {
	mu        sync.RWMutex
	buffers   map[string]*RingBuffer
	retention int
}

// NewManager creates a history store retaining size samples per metric.
func NewManager(retention int) *Manager {
	return &Manager{
		buffers:   make(map[string]*RingBuffer),
		retention: retention,
	}
}

func (m *Manager) buffer(key string, create bool) *RingBuffer {
	m.mu.RLock()
	b, ok := m.buffers[key]
	m.mu.RUnlock()

	if ok || !create {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok = m.buffers[key]; ok {
		return b
	}

	b = NewBuffer(m.retention)
	m.buffers[key] = b

	return b
}

// Add appends a sample to its metric's history.
func (m *Manager) Add(sample models.ResourceSample) {
	m.buffer(sample.Key(), true).Add(sample)
}

// History returns samples of key newer than since (zero: all), oldest first.
func (m *Manager) History(key string, since time.Time) []models.ResourceSample {
	b := m.buffer(key, false)
	if b == nil {
		return nil
	}

	return b.Since(since)
}

// Last returns the newest sample of key.
func (m *Manager) Last(key string) *models.ResourceSample {
	b := m.buffer(key, false)
	if b == nil {
		return nil
	}

	return b.GetLastPoint()
}

// Latest returns the newest sample of every metric.
func (m *Manager) Latest() map[string]models.ResourceSample {
	m.mu.RLock()
	keys := make(map[string]*RingBuffer, len(m.buffers))

	for k, b := range m.buffers {
		keys[k] = b
	}
	m.mu.RUnlock()

	out := make(map[string]models.ResourceSample, len(keys))

	for k, b := range keys {
		if last := b.GetLastPoint(); last != nil {
			out[k] = *last
		}
	}

	return out
}

// GetActiveMetrics returns how many metrics have history.
func (m *Manager) GetActiveMetrics() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.buffers)
}

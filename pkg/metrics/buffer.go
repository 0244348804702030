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

// RingBuffer keeps the most recent samples of one metric. Once full, each
// Add overwrites the oldest sample.
type RingBuffer struct {
	mu      sync.RWMutex
	samples []models.ResourceSample
	pos     int // next write index
	count   int
}

// NewBuffer creates a RingBuffer with the specified capacity.
func NewBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}

	return &RingBuffer{
		samples: make([]models.ResourceSample, size),
	}
}

// Add appends a sample, evicting the oldest one when full.
func (b *RingBuffer) Add(s models.ResourceSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples[b.pos] = s
	b.pos = (b.pos + 1) % len(b.samples)

	if b.count < len(b.samples) {
		b.count++
	}
}

// GetPoints returns every retained sample, oldest first.
func (b *RingBuffer) GetPoints() []models.ResourceSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.collect(time.Time{})
}

// Since returns retained samples with Timestamp >= t, oldest first.
func (b *RingBuffer) Since(t time.Time) []models.ResourceSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.collect(t)
}

// GetLastPoint returns the newest sample, or nil when empty.
func (b *RingBuffer) GetLastPoint() *models.ResourceSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	idx := (b.pos - 1 + len(b.samples)) % len(b.samples)
	last := b.samples[idx]

	return &last
}

// Len returns the number of retained samples.
func (b *RingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

func (b *RingBuffer) collect(since time.Time) []models.ResourceSample {
	size := len(b.samples)
	start := (b.pos - b.count + size) % size
	out := make([]models.ResourceSample, 0, b.count)

	for i := 0; i < b.count; i++ {
		s := b.samples[(start+i)%size]
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}

		out = append(out, s)
	}

	return out
}

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
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/stretchr/testify/assert"
)

func defaultWeights() config.PriorityWeights {
	return config.PriorityWeights{
		Frequency:      4,
		Recency:        4,
		Size:           2,
		Window:         config.Duration(time.Hour),
		HalfLife:       config.Duration(30 * time.Minute),
		FrequencyScale: 10,
		SizeScaleGB:    16,
	}
}

func accessesAt(now time.Time, ago ...time.Duration) []time.Time {
	out := make([]time.Time, len(ago))
	for i, d := range ago {
		out[i] = now.Add(-d)
	}

	return out
}

func TestComputePriority(t *testing.T) {
	w := defaultWeights()
	now := t0

	tests := []struct {
		name     string
		accesses []time.Time
		sizeGB   float64
		want     int
	}{
		{"never used and huge", nil, 32, 1},
		{"never used and tiny", nil, 0, 3},
		{"one access half-life ago", accessesAt(now, 30*time.Minute), 0, 5},
		{"hammered right now", accessesAt(now, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0), 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePriority(tt.accesses, tt.sizeGB, now, w))
		})
	}
}

func TestComputePriorityMonotonic(t *testing.T) {
	w := defaultWeights()
	now := t0

	recent := ComputePriority(accessesAt(now, time.Minute), 4, now, w)
	stale := ComputePriority(accessesAt(now, 2*time.Hour), 4, now, w)
	assert.GreaterOrEqual(t, recent, stale, "recency raises priority")

	small := ComputePriority(accessesAt(now, time.Minute), 1, now, w)
	large := ComputePriority(accessesAt(now, time.Minute), 16, now, w)
	assert.GreaterOrEqual(t, small, large, "size lowers priority")

	few := ComputePriority(accessesAt(now, time.Minute), 4, now, w)
	many := ComputePriority(accessesAt(now, time.Minute, 2*time.Minute, 3*time.Minute, 4*time.Minute, 5*time.Minute), 4, now, w)
	assert.GreaterOrEqual(t, many, few, "frequency raises priority")

	for _, size := range []float64{0, 1, 8, 64} {
		p := ComputePriority(nil, size, now, w)
		assert.GreaterOrEqual(t, p, MinPriority)
		assert.LessOrEqual(t, p, MaxPriority)
	}

	assert.Equal(t, MinPriority, ComputePriority(nil, 1, now, config.PriorityWeights{}))
}

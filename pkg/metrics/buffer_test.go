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
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(v float64, ts time.Time) models.ResourceSample {
	return models.ResourceSample{
		Kind:      models.KindMemory,
		Metric:    "percent",
		Value:     v,
		Unit:      "%",
		Timestamp: ts,
	}
}

func values(samples []models.ResourceSample) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = samples[i].Value
	}

	return out
}

func TestRingBuffer(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	t.Run("empty buffer", func(t *testing.T) {
		b := NewBuffer(3)

		assert.Nil(t, b.GetLastPoint())
		assert.Empty(t, b.GetPoints())
		assert.Equal(t, 0, b.Len())
	})

	t.Run("overwrites oldest when full", func(t *testing.T) {
		b := NewBuffer(3)

		for i := 1; i <= 5; i++ {
			b.Add(sample(float64(i), base.Add(time.Duration(i)*time.Second)))
		}

		assert.Equal(t, 3, b.Len())
		assert.Equal(t, []float64{3, 4, 5}, values(b.GetPoints()))

		last := b.GetLastPoint()
		require.NotNil(t, last)
		assert.InDelta(t, 5.0, last.Value, 0)
	})

	t.Run("since filters by timestamp", func(t *testing.T) {
		b := NewBuffer(10)

		for i := 0; i < 5; i++ {
			b.Add(sample(float64(i), base.Add(time.Duration(i)*time.Second)))
		}

		assert.Equal(t, []float64{2, 3, 4}, values(b.Since(base.Add(2*time.Second))))
		assert.Len(t, b.Since(time.Time{}), 5)
	})

	t.Run("non-positive size still holds one sample", func(t *testing.T) {
		b := NewBuffer(0)
		b.Add(sample(1, base))
		b.Add(sample(2, base))

		assert.Equal(t, []float64{2}, values(b.GetPoints()))
	})
}

func TestManager(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewManager(2)

	m.Add(sample(10, base))
	m.Add(sample(20, base.Add(time.Second)))
	m.Add(sample(30, base.Add(2*time.Second)))
	m.Add(models.ResourceSample{Kind: models.KindCPU, Metric: "percent", Value: 55, Timestamp: base})

	assert.Equal(t, 2, m.GetActiveMetrics())
	assert.Equal(t, []float64{20, 30}, values(m.History("memory.percent", time.Time{})))
	assert.Nil(t, m.History("disk.percent", time.Time{}))
	assert.Nil(t, m.Last("disk.percent"))

	last := m.Last("cpu.percent")
	require.NotNil(t, last)
	assert.InDelta(t, 55.0, last.Value, 0)

	latest := m.Latest()
	require.Len(t, latest, 2)
	assert.InDelta(t, 30.0, latest["memory.percent"].Value, 0)
}

func TestCompute(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, models.Statistics{}, Compute(nil))
	})

	t.Run("single sample has zero stddev", func(t *testing.T) {
		st := Compute([]models.ResourceSample{sample(7, base)})

		assert.Equal(t, 1, st.Count)
		assert.InDelta(t, 7.0, st.Median, 0)
		assert.InDelta(t, 0.0, st.StdDev, 0)
	})

	t.Run("even count", func(t *testing.T) {
		var in []models.ResourceSample
		for i, v := range []float64{4, 1, 3, 2} {
			in = append(in, sample(v, base.Add(time.Duration(i)*time.Second)))
		}

		st := Compute(in)

		assert.Equal(t, 4, st.Count)
		assert.InDelta(t, 2.0, st.Current, 0)
		assert.InDelta(t, 1.0, st.Min, 0)
		assert.InDelta(t, 4.0, st.Max, 0)
		assert.InDelta(t, 2.5, st.Avg, 1e-9)
		assert.InDelta(t, 2.5, st.Median, 1e-9)
		assert.InDelta(t, 1.29099, st.StdDev, 1e-5)
	})
}

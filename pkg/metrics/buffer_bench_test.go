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
	"fmt"
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

func BenchmarkRingBufferAdd(b *testing.B) {
	buf := NewBuffer(720)
	now := time.Now()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf.Add(models.ResourceSample{Kind: models.KindCPU, Metric: "percent", Value: float64(i), Timestamp: now})
	}
}

func BenchmarkRingBufferGetPoints(b *testing.B) {
	for _, size := range []int{60, 720, 8640} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			buf := NewBuffer(size)
			now := time.Now()

			for i := 0; i < size; i++ {
				buf.Add(models.ResourceSample{Value: float64(i), Timestamp: now.Add(time.Duration(i) * time.Second)})
			}

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = buf.GetPoints()
			}
		})
	}
}

func BenchmarkManagerConcurrentAdd(b *testing.B) {
	m := NewManager(720)
	metricNames := []string{"percent", "used_gb", "available_gb", "load1"}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Add(models.ResourceSample{
				Kind:      models.KindMemory,
				Metric:    metricNames[i%len(metricNames)],
				Value:     float64(i),
				Timestamp: time.Now(),
			})
			i++
		}
	})
}

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
	"math"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
)

const (
	MinPriority = 1
	MaxPriority = 10
)

// ComputePriority scores a model from its access history. Frequent and
// recent use raise the score, a large size lowers it. The result is in
// [MinPriority, MaxPriority]; lower scores are evicted first.
func ComputePriority(accesses []time.Time, sizeGB float64, now time.Time, w config.PriorityWeights) int {
	total := w.Frequency + w.Recency + w.Size
	if total <= 0 {
		return MinPriority
	}

	frequency := 0.0

	if window := w.Window.Std(); window > 0 && w.FrequencyScale > 0 {
		recent := 0

		for _, at := range accesses {
			if age := now.Sub(at); age >= 0 && age <= window {
				recent++
			}
		}

		frequency = math.Min(float64(recent)/w.FrequencyScale, 1)
	}

	recency := 0.0

	if last, ok := latest(accesses); ok && w.HalfLife.Std() > 0 {
		age := now.Sub(last)
		if age < 0 {
			age = 0
		}

		recency = math.Exp(-math.Ln2 * age.Seconds() / w.HalfLife.Std().Seconds())
	}

	size := 0.0
	if w.SizeScaleGB > 0 && sizeGB > 0 {
		size = math.Min(sizeGB/w.SizeScaleGB, 1)
	}

	// raw lies in [-w.Size, w.Frequency+w.Recency]; shift it onto [0, 1].
	raw := w.Frequency*frequency + w.Recency*recency - w.Size*size
	norm := (raw + w.Size) / total

	p := MinPriority + int(math.Round(norm*float64(MaxPriority-MinPriority)))

	return min(max(p, MinPriority), MaxPriority)
}

func latest(ts []time.Time) (time.Time, bool) {
	if len(ts) == 0 {
		return time.Time{}, false
	}

	out := ts[0]
	for _, t := range ts[1:] {
		if t.After(out) {
			out = t
		}
	}

	return out, true
}

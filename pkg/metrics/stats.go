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
	"math"
	"sort"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// Compute summarises samples (oldest first). StdDev is the sample standard
// deviation and is zero for fewer than two samples.
func Compute(samples []models.ResourceSample) models.Statistics {
	if len(samples) == 0 {
		return models.Statistics{}
	}

	values := make([]float64, len(samples))
	sum := 0.0

	for i := range samples {
		values[i] = samples[i].Value
		sum += values[i]
	}

	st := models.Statistics{
		Current: values[len(values)-1],
		Count:   len(values),
		Avg:     sum / float64(len(values)),
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}

	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := v - st.Avg
			ss += d * d
		}

		st.StdDev = math.Sqrt(ss / float64(len(values)-1))
	}

	return st
}

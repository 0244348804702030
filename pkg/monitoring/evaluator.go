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
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// Decision is the outcome of evaluating one rule against its history.
type Decision struct {
	Severity  models.Severity
	Threshold float64
	Sample    models.ResourceSample
}

var severities = []models.Severity{
	models.SeverityEmergency,
	models.SeverityCritical,
	models.SeverityWarning,
}

// Evaluate returns the most severe level that history (oldest first) has
// violated continuously for at least rule.Duration, ending at the newest
// sample. history must reach back past newest-duration for a streak to
// count as sustained. Samples are read backwards from the newest one and the
// walk stops at the first sample that does not violate.
func Evaluate(rule *models.ThresholdRule, history []models.ResourceSample) Decision {
	if len(history) == 0 {
		return Decision{}
	}

	latest := history[len(history)-1]
	windowStart := latest.Timestamp.Add(-rule.Duration)

	for _, sev := range severities {
		level, ok := rule.Level(sev)
		if !ok {
			continue
		}

		start, violated := streakStart(rule, history, level)
		if !violated {
			continue
		}

		if rule.Duration <= 0 || !start.After(windowStart) {
			return Decision{Severity: sev, Threshold: level, Sample: latest}
		}
	}

	return Decision{Sample: latest}
}

// streakStart returns the timestamp of the oldest sample in the unbroken run
// of violations that ends at the newest sample.
func streakStart(rule *models.ThresholdRule, history []models.ResourceSample, level float64) (time.Time, bool) {
	var start time.Time

	violated := false

	for i := len(history) - 1; i >= 0; i-- {
		if !rule.Violates(history[i].Value, level) {
			break
		}

		start = history[i].Timestamp
		violated = true
	}

	return start, violated
}

// Recovered reports whether latest is back on the safe side of the warning level.
func Recovered(rule *models.ThresholdRule, latest *models.ResourceSample) bool {
	if latest == nil {
		return false
	}

	level, _ := rule.Level(models.SeverityWarning)

	return !rule.Violates(latest.Value, level)
}

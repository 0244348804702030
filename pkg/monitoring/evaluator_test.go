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
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	emergency := 95.0
	rule := memoryRule(2 * time.Second)
	rule.Emergency = &emergency

	series := func(values ...float64) []models.ResourceSample {
		out := make([]models.ResourceSample, len(values))
		for i, v := range values {
			out[i] = memSample(v, time.Duration(i)*time.Second)
		}

		return out
	}

	tests := []struct {
		name     string
		history  []models.ResourceSample
		severity models.Severity
		level    float64
	}{
		{"empty", nil, models.SeverityNone, 0},
		{"too short", series(90, 90), models.SeverityNone, 0},
		{"sustained critical", series(90, 90, 90), models.SeverityCritical, 85},
		{"most severe sustained wins", series(96, 96, 96), models.SeverityEmergency, 95},
		{"emergency spike inside critical run", series(90, 90, 99), models.SeverityCritical, 85},
		{"warning sustained under mixed levels", series(72, 88, 75), models.SeverityWarning, 70},
		{"broken streak", series(90, 50, 90, 90), models.SeverityNone, 0},
		{"exact threshold violates", series(70, 70, 70), models.SeverityWarning, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(&rule, tt.history)
			assert.Equal(t, tt.severity, d.Severity)
			assert.InDelta(t, tt.level, d.Threshold, 0)
		})
	}
}

func TestEvaluateZeroDuration(t *testing.T) {
	rule := memoryRule(0)

	d := Evaluate(&rule, []models.ResourceSample{memSample(86, 0)})
	assert.Equal(t, models.SeverityCritical, d.Severity)
}

func TestRecovered(t *testing.T) {
	rule := memoryRule(0)

	assert.False(t, Recovered(&rule, nil))
	assert.False(t, Recovered(&rule, &models.ResourceSample{Value: 70}))
	assert.True(t, Recovered(&rule, &models.ResourceSample{Value: 69.9}))
}

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

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestExporter(t *testing.T) {
	e := NewExporter()

	e.RecordSample(&models.ResourceSample{Kind: models.KindCPU, Metric: "percent", Unit: "%", Value: 42})
	e.RecordCollectError(models.KindGPU, "utilization")
	e.RecordCollectError(models.KindGPU, "utilization")
	e.SetActiveAlerts(map[models.Severity]int{models.SeverityCritical: 2})
	e.SetServiceUp("ollama", true)

	assert.InDelta(t, 42.0, testutil.ToFloat64(e.resourceValue.WithLabelValues("cpu", "percent", "%")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(e.collectErrors.WithLabelValues("gpu", "utilization")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(e.alertsActive.WithLabelValues("critical")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(e.alertsActive.WithLabelValues("warning")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(e.serviceUp.WithLabelValues("ollama")), 0)
}

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
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// HistoryStore retains bounded per-metric sample history.
type HistoryStore interface {
	Add(sample models.ResourceSample)
	History(key string, since time.Time) []models.ResourceSample
	Last(key string) *models.ResourceSample
	Latest() map[string]models.ResourceSample
}

// Recorder receives samples and alert state for export.
type Recorder interface {
	RecordSample(sample *models.ResourceSample)
	RecordCollectError(kind models.ResourceKind, metric string)
	RecordAlert(alert *models.Alert)
	SetActiveAlerts(counts map[models.Severity]int)
}

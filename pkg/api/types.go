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

package api

import (
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// SystemStatus is the /api/status body.
type SystemStatus struct {
	Timestamp    time.Time                        `json:"timestamp"`
	Uptime       string                           `json:"uptime"`
	Services     []models.ServiceStatus           `json:"services"`
	ActiveAlerts []models.Alert                   `json:"active_alerts"`
	Memory       *models.MemoryStats              `json:"memory,omitempty"`
	Resources    map[string]models.ResourceSample `json:"resources"`
}

// MetricHistory is the /history body.
type MetricHistory struct {
	Key     string                  `json:"key"`
	Window  string                  `json:"window,omitempty"`
	Samples []models.ResourceSample `json:"samples"`
}

// ModelsResponse is the /api/models body.
type ModelsResponse struct {
	Stats  models.MemoryStats  `json:"stats"`
	Models []models.ModelEntry `json:"models"`
}

// ActionResult is returned by service actions.
type ActionResult struct {
	Service string `json:"service"`
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

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
	"context"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// MetricsSource is the read side of the resource monitor.
type MetricsSource interface {
	Current() map[string]models.ResourceSample
	History(kind models.ResourceKind, metric string, window time.Duration) []models.ResourceSample
	Statistics(kind models.ResourceKind, metric string, window time.Duration) models.Statistics
	Metrics() []string
}

// AlertSource exposes dispatcher state.
type AlertSource interface {
	Active() []models.Alert
	History() []models.Alert
}

// ModelSource exposes the model memory manager.
type ModelSource interface {
	Entries() []models.ModelEntry
	Stats(ctx context.Context) models.MemoryStats
}

// ServiceController is the supervisor surface the API drives.
type ServiceController interface {
	Status(ctx context.Context) []models.ServiceStatus
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
}

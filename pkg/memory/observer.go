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
	"context"
	"log/slog"
	"slices"

	"github.com/mfreeman451/stackradar/pkg/alerts"
	"github.com/mfreeman451/stackradar/pkg/models"
)

// PressureObserver turns raised memory alerts into eviction requests.
type PressureObserver struct {
	manager *Manager
	metrics []string
	logger  *slog.Logger
}

// NewPressureObserver watches memory alerts on the listed metric names.
func NewPressureObserver(m *Manager, pressureMetrics []string, logger *slog.Logger) *PressureObserver {
	return &PressureObserver{
		manager: m,
		metrics: pressureMetrics,
		logger:  logger.With("component", "memory"),
	}
}

// OnAlert implements alerts.Observer. Eviction runs on the dispatching
// goroutine; the dispatcher holds no lock while observers run.
func (o *PressureObserver) OnAlert(ctx context.Context, ev alerts.Event) {
	if ev.Type != alerts.EventRaised || ev.Alert.Kind != models.KindMemory {
		return
	}

	if !slices.Contains(o.metrics, ev.Alert.Metric) {
		return
	}

	o.logger.Info("Memory pressure alert received",
		"alert_id", ev.Alert.ID, "severity", ev.Alert.Severity)

	o.manager.OnPressure(ctx, ev.Alert.Severity)
}

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
	"net/http"

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes monitor state on its own registry so tests and multiple
// instances never collide on the global one.
type Exporter struct {
	registry      *prometheus.Registry
	resourceValue *prometheus.GaugeVec
	collectErrors *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	alertsActive  *prometheus.GaugeVec
	modelsLoaded  prometheus.Gauge
	evictions     *prometheus.CounterVec
	serviceUp     *prometheus.GaugeVec
	shutdownTasks *prometheus.CounterVec
}

// NewExporter registers every stackradar metric on a fresh registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Exporter{
		registry: reg,
		resourceValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackradar_resource_value",
			Help: "Latest sampled value per resource metric",
		}, []string{"resource", "metric", "unit"}),
		collectErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stackradar_collect_errors_total",
			Help: "Metric collection failures by resource and metric",
		}, []string{"resource", "metric"}),
		alertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stackradar_alerts_total",
			Help: "Alerts raised by severity",
		}, []string{"severity", "rule"}),
		alertsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackradar_alerts_active",
			Help: "Currently active alerts by severity",
		}, []string{"severity"}),
		modelsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "stackradar_models_loaded",
			Help: "Models currently tracked by the memory manager",
		}),
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stackradar_model_evictions_total",
			Help: "Model evictions by pressure severity",
		}, []string{"severity"}),
		serviceUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackradar_service_up",
			Help: "1 when the service port is listening",
		}, []string{"service"}),
		shutdownTasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stackradar_shutdown_tasks_total",
			Help: "Shutdown task outcomes",
		}, []string{"result"}),
	}
}

func (e *Exporter) RecordSample(s *models.ResourceSample) {
	e.resourceValue.WithLabelValues(string(s.Kind), s.Metric, s.Unit).Set(s.Value)
}

func (e *Exporter) RecordCollectError(kind models.ResourceKind, metric string) {
	e.collectErrors.WithLabelValues(string(kind), metric).Inc()
}

func (e *Exporter) RecordAlert(a *models.Alert) {
	e.alertsTotal.WithLabelValues(a.Severity.String(), a.RuleKey).Inc()
}

func (e *Exporter) SetActiveAlerts(counts map[models.Severity]int) {
	for _, sev := range []models.Severity{models.SeverityWarning, models.SeverityCritical, models.SeverityEmergency} {
		e.alertsActive.WithLabelValues(sev.String()).Set(float64(counts[sev]))
	}
}

// SetModelsLoaded records the size of the tracked model set.
func (e *Exporter) SetModelsLoaded(n int) {
	e.modelsLoaded.Set(float64(n))
}

// RecordEviction counts one evicted model.
func (e *Exporter) RecordEviction(sev models.Severity) {
	e.evictions.WithLabelValues(sev.String()).Inc()
}

// SetServiceUp records a service port probe result.
func (e *Exporter) SetServiceUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1
	}

	e.serviceUp.WithLabelValues(service).Set(v)
}

// RecordShutdownTask counts a task outcome ("completed" or "failed").
func (e *Exporter) RecordShutdownTask(result string) {
	e.shutdownTasks.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

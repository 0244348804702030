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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

var (
	errInvalidDuration   = errors.New("invalid duration")
	errDuplicateService  = errors.New("duplicate service name")
	errInvalidPort       = errors.New("invalid port")
	errMissingService    = errors.New("service name is required")
	errMissingWebhookURL = errors.New("webhook enabled without url")
	errInvalidInterval   = errors.New("check interval must be positive")
	errInvalidTargets    = errors.New("critical eviction target must be at least the warning target")
)

const (
	DefaultCheckInterval    = 5 * time.Second
	DefaultHistorySize      = 720
	DefaultStopTimeout      = 5 * time.Second
	DefaultAlertCooldown    = 5 * time.Minute
	DefaultHistoryLimit     = 1000
	DefaultWebhookTimeout   = 10 * time.Second
	DefaultWarningTargetGB  = 1.0
	DefaultCriticalTargetGB = 2.0
	DefaultSettleInterval   = 500 * time.Millisecond
	DefaultRequestTimeout   = 10 * time.Second
	DefaultTaskTimeout      = 10 * time.Second
	DefaultEmergencyGrace   = 5 * time.Second
	DefaultStatsFile        = "shutdown_stats.json"
	DefaultHealthInterval   = time.Second
	DefaultStartTimeout     = 60 * time.Second
	DefaultStartPause       = 2 * time.Second
	DefaultStopGrace        = 5 * time.Second
	DefaultRestartPause     = 2 * time.Second
	DefaultProbeTimeout     = time.Second
	DefaultListenAddr       = "127.0.0.1:8765"
	DefaultLogQueueSize     = 1024
	DefaultStreamQueue      = 64
)

func ptr(v float64) *float64 { return &v }

// Default returns a configuration for the usual three-service local stack.
func Default() *Config {
	cfg := &Config{
		Monitor: MonitorConfig{
			Metrics: []MetricConfig{
				{Resource: models.KindCPU, Metric: "percent"},
				{Resource: models.KindMemory, Metric: "percent"},
				{Resource: models.KindMemory, Metric: "available_gb"},
				{Resource: models.KindDisk, Metric: "free_gb"},
				{Resource: models.KindDisk, Metric: "percent"},
				{Resource: models.KindNetwork, Metric: "bytes_sent_per_sec"},
				{Resource: models.KindGPU, Metric: "memory_percent"},
				{Resource: models.KindTemperature, Metric: "max_celsius"},
				{Resource: models.KindProcess, Metric: "count"},
			},
		},
		Rules: []RuleConfig{
			{Resource: models.KindCPU, Metric: "percent", Direction: models.Above,
				Warning: 80, Critical: 90, Emergency: ptr(98), Duration: Duration(30 * time.Second)},
			{Resource: models.KindMemory, Metric: "percent", Direction: models.Above,
				Warning: 70, Critical: 85, Emergency: ptr(95), Duration: Duration(10 * time.Second)},
			{Resource: models.KindMemory, Metric: "available_gb", Direction: models.Below,
				Warning: 2, Critical: 1, Emergency: ptr(0.5), Duration: Duration(10 * time.Second)},
			{Resource: models.KindDisk, Metric: "free_gb", Direction: models.Below,
				Warning: 10, Critical: 5, Emergency: ptr(1), Duration: Duration(time.Minute)},
			{Resource: models.KindGPU, Metric: "memory_percent", Direction: models.Above,
				Warning: 85, Critical: 95, Duration: Duration(30 * time.Second)},
			{Resource: models.KindTemperature, Metric: "max_celsius", Direction: models.Above,
				Warning: 80, Critical: 90, Emergency: ptr(100), Duration: Duration(time.Minute)},
		},
		Alerts: AlertsConfig{Log: true},
		Services: []ServiceConfig{
			{ServiceDescriptor: models.ServiceDescriptor{
				Name: "ollama", Port: 11434, Order: 0,
				HealthCheck:  models.HealthCheck{Type: models.HealthHTTP, URL: "http://127.0.0.1:11434/api/tags"},
				StartCommand: []string{"ollama", "serve"},
				BaseURL:      "http://127.0.0.1:11434",
			}},
			{ServiceDescriptor: models.ServiceDescriptor{
				Name: "comfyui", Port: 8188, Order: 1,
				HealthCheck:  models.HealthCheck{Type: models.HealthHTTP, URL: "http://127.0.0.1:8188/system_stats"},
				StartCommand: []string{"python", "main.py", "--listen", "127.0.0.1", "--port", "8188"},
				BaseURL:      "http://127.0.0.1:8188",
			}},
			{ServiceDescriptor: models.ServiceDescriptor{
				Name: "open-webui", Port: 8080, Order: 2,
				HealthCheck:  models.HealthCheck{Type: models.HealthHTTP, URL: "http://127.0.0.1:8080/health"},
				StartCommand: []string{"open-webui", "serve", "--port", "8080"},
			}},
		},
		API: APIConfig{Enabled: true},
	}

	cfg.ApplyDefaults()

	return cfg
}

func durationOr(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}

// ApplyDefaults fills zero values with the package defaults.
func (c *Config) ApplyDefaults() {
	durationOr(&c.Monitor.CheckInterval, DefaultCheckInterval)
	durationOr(&c.Monitor.StopTimeout, DefaultStopTimeout)

	if c.Monitor.HistorySize <= 0 {
		c.Monitor.HistorySize = DefaultHistorySize
	}

	if c.Monitor.DiskPath == "" {
		c.Monitor.DiskPath = "/"
	}

	durationOr(&c.Alerts.Cooldown, DefaultAlertCooldown)
	durationOr(&c.Alerts.Webhook.Timeout, DefaultWebhookTimeout)

	if c.Alerts.HistoryLimit <= 0 {
		c.Alerts.HistoryLimit = DefaultHistoryLimit
	}

	if c.Alerts.StreamQueue <= 0 {
		c.Alerts.StreamQueue = DefaultStreamQueue
	}

	if c.Alerts.Webhook.MaxAttempts <= 0 {
		c.Alerts.Webhook.MaxAttempts = 2
	}

	if c.Memory.WarningTargetGB <= 0 {
		c.Memory.WarningTargetGB = DefaultWarningTargetGB
	}

	if c.Memory.CriticalTargetGB <= 0 {
		c.Memory.CriticalTargetGB = DefaultCriticalTargetGB
	}

	durationOr(&c.Memory.SettleInterval, DefaultSettleInterval)
	durationOr(&c.Memory.RequestTimeout, DefaultRequestTimeout)

	if len(c.Memory.PressureMetrics) == 0 {
		c.Memory.PressureMetrics = []string{"percent"}
	}

	c.Memory.Weights.applyDefaults()

	durationOr(&c.Shutdown.TaskTimeout, DefaultTaskTimeout)
	durationOr(&c.Shutdown.EmergencyGrace, DefaultEmergencyGrace)

	if c.Shutdown.StatsFile == "" {
		c.Shutdown.StatsFile = DefaultStatsFile
	}

	durationOr(&c.Supervisor.HealthInterval, DefaultHealthInterval)
	durationOr(&c.Supervisor.StartTimeout, DefaultStartTimeout)
	durationOr(&c.Supervisor.StartPause, DefaultStartPause)
	durationOr(&c.Supervisor.StopGrace, DefaultStopGrace)
	durationOr(&c.Supervisor.RestartPause, DefaultRestartPause)
	durationOr(&c.Supervisor.ProbeTimeout, DefaultProbeTimeout)

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Logging.QueueSize <= 0 {
		c.Logging.QueueSize = DefaultLogQueueSize
	}
}

func (w *PriorityWeights) applyDefaults() {
	if w.Frequency == 0 && w.Recency == 0 && w.Size == 0 {
		w.Frequency, w.Recency, w.Size = 4, 4, 2
	}

	durationOr(&w.Window, time.Hour)
	durationOr(&w.HalfLife, 30*time.Minute)

	if w.FrequencyScale <= 0 {
		w.FrequencyScale = 10
	}

	if w.SizeScaleGB <= 0 {
		w.SizeScaleGB = 16
	}
}

// Validate checks rules, services and channel settings.
func (c *Config) Validate() error {
	if c.Monitor.CheckInterval <= 0 {
		return errInvalidInterval
	}

	for i := range c.Rules {
		rule := c.Rules[i].Rule()
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}

	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		return errMissingWebhookURL
	}

	if c.Memory.CriticalTargetGB < c.Memory.WarningTargetGB {
		return errInvalidTargets
	}

	seen := make(map[string]struct{}, len(c.Services))

	for i := range c.Services {
		svc := &c.Services[i]
		if svc.Name == "" {
			return fmt.Errorf("services[%d]: %w", i, errMissingService)
		}

		if _, dup := seen[svc.Name]; dup {
			return fmt.Errorf("%w: %s", errDuplicateService, svc.Name)
		}

		seen[svc.Name] = struct{}{}

		if svc.Port <= 0 || svc.Port > 65535 {
			return fmt.Errorf("%w: %s port %d", errInvalidPort, svc.Name, svc.Port)
		}
	}

	return nil
}

// ThresholdRules converts every configured rule.
func (c *Config) ThresholdRules() []models.ThresholdRule {
	rules := make([]models.ThresholdRule, 0, len(c.Rules))
	for i := range c.Rules {
		rules = append(rules, c.Rules[i].Rule())
	}

	return rules
}

// ServiceDescriptors converts every configured service.
func (c *Config) ServiceDescriptors() []models.ServiceDescriptor {
	out := make([]models.ServiceDescriptor, 0, len(c.Services))
	for i := range c.Services {
		out = append(out, c.Services[i].Descriptor())
	}

	return out
}

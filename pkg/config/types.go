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
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return errInvalidDuration
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidDuration, err)
	}

	*d = Duration(dur)

	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root stack configuration.
type Config struct {
	Monitor    MonitorConfig    `json:"monitor" yaml:"monitor"`
	Rules      []RuleConfig     `json:"rules" yaml:"rules"`
	Alerts     AlertsConfig     `json:"alerts" yaml:"alerts"`
	Memory     MemoryConfig     `json:"memory" yaml:"memory"`
	Shutdown   ShutdownConfig   `json:"shutdown" yaml:"shutdown"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
	Services   []ServiceConfig  `json:"services" yaml:"services"`
	API        APIConfig        `json:"api" yaml:"api"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// MetricConfig names one tracked metric.
type MetricConfig struct {
	Resource models.ResourceKind `json:"resource" yaml:"resource"`
	Metric   string              `json:"metric" yaml:"metric"`
}

// MonitorConfig configures the resource monitor poll loop.
type MonitorConfig struct {
	CheckInterval Duration       `json:"check_interval" yaml:"check_interval"`
	HistorySize   int            `json:"history_size" yaml:"history_size"`
	StopTimeout   Duration       `json:"stop_timeout" yaml:"stop_timeout"`
	Metrics       []MetricConfig `json:"metrics" yaml:"metrics"`
	DiskPath      string         `json:"disk_path" yaml:"disk_path"`
}

// RuleConfig is the file form of models.ThresholdRule.
type RuleConfig struct {
	Resource     models.ResourceKind `json:"resource" yaml:"resource"`
	Metric       string              `json:"metric" yaml:"metric"`
	Direction    models.Direction    `json:"direction" yaml:"direction"`
	Warning      float64             `json:"warning" yaml:"warning"`
	Critical     float64             `json:"critical" yaml:"critical"`
	Emergency    *float64            `json:"emergency,omitempty" yaml:"emergency,omitempty"`
	Duration     Duration            `json:"duration" yaml:"duration"`
	PollInterval Duration            `json:"poll_interval" yaml:"poll_interval"`
}

// Rule converts the file form into the runtime rule.
func (r *RuleConfig) Rule() models.ThresholdRule {
	dir := r.Direction
	if dir == "" {
		dir = models.Above
	}

	return models.ThresholdRule{
		Kind:         r.Resource,
		Metric:       r.Metric,
		Direction:    dir,
		Warning:      r.Warning,
		Critical:     r.Critical,
		Emergency:    r.Emergency,
		Duration:     r.Duration.Std(),
		PollInterval: r.PollInterval.Std(),
	}
}

// WebhookConfig represents a webhook notification configuration.
type WebhookConfig struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	URL           string   `json:"url" yaml:"url"`
	Timeout       Duration `json:"timeout" yaml:"timeout"`
	Template      string   `json:"template,omitempty" yaml:"template,omitempty"`
	Headers       []Header `json:"headers,omitempty" yaml:"headers,omitempty"` // Optional custom headers
	RatePerSecond float64  `json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int      `json:"burst" yaml:"burst"`
	MaxAttempts   int      `json:"max_attempts" yaml:"max_attempts"`
}

// Header represents a custom HTTP header.
type Header struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// EmailConfig is optional; the channel is skipped when Host or To is empty.
type EmailConfig struct {
	Host     string   `json:"host" yaml:"host"`
	Port     int      `json:"port" yaml:"port"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	From     string   `json:"from" yaml:"from"`
	To       []string `json:"to" yaml:"to"`
}

// AlertsConfig configures the dispatcher and its channels.
type AlertsConfig struct {
	Cooldown     Duration      `json:"cooldown" yaml:"cooldown"`
	HistoryLimit int           `json:"history_limit" yaml:"history_limit"`
	Log          bool          `json:"log" yaml:"log"`
	File         string        `json:"file,omitempty" yaml:"file,omitempty"`
	Console      bool          `json:"console" yaml:"console"`
	Webhook      WebhookConfig `json:"webhook" yaml:"webhook"`
	Email        EmailConfig   `json:"email" yaml:"email"`
	StreamQueue  int           `json:"stream_queue" yaml:"stream_queue"`
}

// PriorityWeights tune memory.ComputePriority.
type PriorityWeights struct {
	Frequency      float64  `json:"frequency" yaml:"frequency"`
	Recency        float64  `json:"recency" yaml:"recency"`
	Size           float64  `json:"size" yaml:"size"`
	Window         Duration `json:"window" yaml:"window"`
	HalfLife       Duration `json:"half_life" yaml:"half_life"`
	FrequencyScale float64  `json:"frequency_scale" yaml:"frequency_scale"`
	SizeScaleGB    float64  `json:"size_scale_gb" yaml:"size_scale_gb"`
}

// MemoryConfig configures model eviction under memory pressure.
type MemoryConfig struct {
	WarningTargetGB  float64         `json:"warning_target_gb" yaml:"warning_target_gb"`
	CriticalTargetGB float64         `json:"critical_target_gb" yaml:"critical_target_gb"`
	SettleInterval   Duration        `json:"settle_interval" yaml:"settle_interval"`
	RequestTimeout   Duration        `json:"request_timeout" yaml:"request_timeout"`
	PressureMetrics  []string        `json:"pressure_metrics" yaml:"pressure_metrics"`
	DynamicPriority  bool            `json:"dynamic_priority" yaml:"dynamic_priority"`
	Weights          PriorityWeights `json:"weights" yaml:"weights"`
}

// ShutdownConfig configures the shutdown coordinator.
type ShutdownConfig struct {
	TaskTimeout    Duration `json:"task_timeout" yaml:"task_timeout"`
	EmergencyGrace Duration `json:"emergency_grace" yaml:"emergency_grace"`
	StatsFile      string   `json:"stats_file" yaml:"stats_file"`
	ExitOnComplete bool     `json:"exit_on_complete" yaml:"exit_on_complete"`
}

// SupervisorConfig configures service start/stop timing.
type SupervisorConfig struct {
	HealthInterval Duration `json:"health_interval" yaml:"health_interval"`
	StartTimeout   Duration `json:"start_timeout" yaml:"start_timeout"`
	StartPause     Duration `json:"start_pause" yaml:"start_pause"`
	StopGrace      Duration `json:"stop_grace" yaml:"stop_grace"`
	RestartPause   Duration `json:"restart_pause" yaml:"restart_pause"`
	ProbeTimeout   Duration `json:"probe_timeout" yaml:"probe_timeout"`
}

// ServiceConfig is the file form of models.ServiceDescriptor.
type ServiceConfig struct {
	models.ServiceDescriptor `yaml:",inline"`
	HealthTimeout            Duration `json:"health_timeout" yaml:"health_timeout"`
}

// Descriptor converts the file form into the runtime descriptor.
func (s *ServiceConfig) Descriptor() models.ServiceDescriptor {
	d := s.ServiceDescriptor
	d.HealthCheck.Timeout = s.HealthTimeout.Std()

	if d.Host == "" {
		d.Host = "127.0.0.1"
	}

	if d.HealthCheck.Type == "" {
		d.HealthCheck.Type = models.HealthPort
	}

	return d
}

// APIConfig configures the local status API.
type APIConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	// HealthAddr serves the grpc health protocol when set.
	HealthAddr string `json:"health_addr,omitempty" yaml:"health_addr,omitempty"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

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

package models

import "time"

// ShutdownStats is written once per shutdown run.
type ShutdownStats struct {
	RunID          string    `json:"run_id"`
	Reason         string    `json:"reason"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Duration       float64   `json:"duration"` // seconds
	TasksTotal     int       `json:"tasks_total"`
	TasksCompleted int       `json:"tasks_completed"`
	TasksFailed    int       `json:"tasks_failed"`
	Errors         []string  `json:"errors"`
	Emergency      bool      `json:"emergency"`
}

// HealthCheckType selects the checker used for a service.
type HealthCheckType string

const (
	HealthHTTP HealthCheckType = "http"
	HealthPort HealthCheckType = "port"
	HealthGRPC HealthCheckType = "grpc"
)

// HealthCheck configures how service readiness is probed.
type HealthCheck struct {
	Type    HealthCheckType `json:"type" yaml:"type"`
	URL     string          `json:"url,omitempty" yaml:"url,omitempty"`         // http
	Service string          `json:"service,omitempty" yaml:"service,omitempty"` // grpc health service name
	Timeout time.Duration   `json:"-" yaml:"-"`
}

// ServiceDescriptor is the static description of one stack service.
type ServiceDescriptor struct {
	Name         string      `json:"name" yaml:"name"`
	Host         string      `json:"host" yaml:"host"`
	Port         int         `json:"port" yaml:"port"`
	HealthCheck  HealthCheck `json:"health_check" yaml:"health_check"`
	StartCommand []string    `json:"start_command" yaml:"start_command"`
	Env          []string    `json:"env,omitempty" yaml:"env,omitempty"`
	WorkDir      string      `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	Order        int         `json:"order" yaml:"order"`
	// BaseURL is where the unload/free-memory API of the service lives.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// ServiceStatus is derived on every query, never cached.
type ServiceStatus struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Managed bool   `json:"managed"`
}

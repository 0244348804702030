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

// Package models pkg/models/metrics.go
package models

import (
	"fmt"
	"time"
)

// ResourceKind is the category of a monitored host resource.
type ResourceKind string

const (
	KindCPU         ResourceKind = "cpu"
	KindMemory      ResourceKind = "memory"
	KindDisk        ResourceKind = "disk"
	KindNetwork     ResourceKind = "network"
	KindGPU         ResourceKind = "gpu"
	KindTemperature ResourceKind = "temperature"
	KindProcess     ResourceKind = "process"
)

var errUnknownKind = fmt.Errorf("unknown resource kind")

// ParseResourceKind validates a kind read from configuration or a URL.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch k := ResourceKind(s); k {
	case KindCPU, KindMemory, KindDisk, KindNetwork, KindGPU, KindTemperature, KindProcess:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownKind, s)
	}
}

// MetricKey builds the "<kind>.<metric>" key used for history, rules and alerts.
func MetricKey(kind ResourceKind, metric string) string {
	return string(kind) + "." + metric
}

// MetadataEntry is a single key/value pair attached to a sample.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata keeps insertion order, unlike a map.
type Metadata []MetadataEntry

// Get returns the first value stored under key.
func (m Metadata) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}

	return "", false
}

// ResourceSample is one reading of one metric. Treat it as immutable once created.
type ResourceSample struct {
	Kind      ResourceKind `json:"resource"`
	Metric    string       `json:"metric"`
	Value     float64      `json:"value"`
	Unit      string       `json:"unit"`
	Timestamp time.Time    `json:"timestamp"`
	Metadata  Metadata     `json:"metadata,omitempty"`
}

// Key returns the metric key of the sample.
func (s *ResourceSample) Key() string {
	return MetricKey(s.Kind, s.Metric)
}

// Statistics summarises a window of samples for one metric.
type Statistics struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stddev"`
	Count   int     `json:"count"`
}

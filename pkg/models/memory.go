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

// ModelEntry is a loaded model tracked for memory-pressure eviction.
// Lower Priority values are evicted first.
type ModelEntry struct {
	Name       string      `json:"name"`
	SizeGB     float64     `json:"size_gb"`
	LoadedAt   time.Time   `json:"loaded_at"`
	LastUsedAt time.Time   `json:"last_used_at"`
	Priority   int         `json:"priority"`
	Service    string      `json:"service"`
	Accesses   []time.Time `json:"-"`
}

// MemoryStats is a point-in-time view of the model manager.
type MemoryStats struct {
	LoadedModels int        `json:"loaded_models"`
	TotalSizeGB  float64    `json:"total_size_gb"`
	FreeGB       float64    `json:"free_gb"`
	Evictions    int        `json:"evictions"`
	LastEviction *time.Time `json:"last_eviction,omitempty"`
}

// EvictionReport describes one pressure response.
type EvictionReport struct {
	Severity  Severity `json:"severity"`
	TargetGB  float64  `json:"target_gb"`
	Evicted   []string `json:"evicted"`
	FreedGB   float64  `json:"freed_gb"`
	FreeGB    float64  `json:"free_gb"`
	TargetMet bool     `json:"target_met"`
}

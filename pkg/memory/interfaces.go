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

// Package memory tracks loaded models and evicts them under memory pressure.
package memory

import "context"

//go:generate mockgen -destination=mock_memory.go -package=memory github.com/mfreeman451/stackradar/pkg/memory Unloader,Probe

// Unloader asks an owning service to release memory.
type Unloader interface {
	// Unload releases one model held by service.
	Unload(ctx context.Context, service, model string) error

	// FreeMemory asks service for its most aggressive cleanup.
	FreeMemory(ctx context.Context, service string) error
}

// Probe reports currently available system memory.
type Probe interface {
	FreeGB(ctx context.Context) (float64, error)
}

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

// Package collector pkg/collector/interfaces.go
package collector

import (
	"context"

	"github.com/mfreeman451/stackradar/pkg/models"
)

//go:generate mockgen -destination=mock_collector.go -package=collector github.com/mfreeman451/stackradar/pkg/collector Source,CommandRunner

// Source reads one metric of one resource kind.
type Source interface {
	Sample(ctx context.Context, kind models.ResourceKind, metric string) (models.ResourceSample, error)
}

// CommandRunner executes an external tool and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

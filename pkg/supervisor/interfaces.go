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

package supervisor

//go:generate mockgen -destination=mock_supervisor.go -package=supervisor github.com/mfreeman451/stackradar/pkg/supervisor ProcessController,Process

import (
	"context"
	"os"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// Process is a spawned service process.
type Process interface {
	PID() int
	Signal(sig os.Signal) error
	Kill() error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	Exited() bool
}

// ProcessController spawns service processes.
type ProcessController interface {
	Start(ctx context.Context, desc models.ServiceDescriptor) (Process, error)
}

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

package shutdown

import (
	"context"
	"time"
)

// Task is one unit of shutdown work. Set Run for synchronous work or Start
// for work that reports completion on a channel.
type Task struct {
	Name string
	// Priority orders tasks; higher runs first.
	Priority int
	// Timeout bounds the task. Zero uses the coordinator default.
	Timeout time.Duration

	Run   func(ctx context.Context) error
	Start func(ctx context.Context) <-chan error

	OnTimeout        func()
	CleanupOnTimeout bool
}

// State is the coordinator lifecycle.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Reaper kills whatever is left when a shutdown turns into an emergency.
type Reaper interface {
	TerminateAll(grace time.Duration)
}

// TaskRecorder counts task outcomes. metrics.Exporter implements it.
type TaskRecorder interface {
	RecordShutdownTask(result string)
}

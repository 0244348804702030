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

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mfreeman451/stackradar/pkg/models"
)

// ExecController starts services with os/exec. Each service runs in its own
// process group so signals reach the children it forks.
type ExecController struct {
	logger *slog.Logger
}

// NewExecController creates the default process controller.
func NewExecController(logger *slog.Logger) *ExecController {
	return &ExecController{logger: logger.With("component", "supervisor")}
}

type execProcess struct {
	cmd    *exec.Cmd
	done   chan struct{}
	exited atomic.Bool
}

// Start implements ProcessController. ctx only bounds the spawn; the process
// outlives it.
func (c *ExecController) Start(ctx context.Context, desc models.ServiceDescriptor) (Process, error) {
	if len(desc.StartCommand) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoStartCommand, desc.Name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchID := uuid.NewString()

	cmd := exec.Command(desc.StartCommand[0], desc.StartCommand[1:]...) //nolint:gosec // command comes from config
	cmd.Dir = desc.WorkDir
	cmd.Env = append(os.Environ(), desc.Env...)
	cmd.Env = append(cmd.Env, "STACKRADAR_LAUNCH_ID="+launchID)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", desc.Name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}

	go func() {
		err := cmd.Wait()
		p.exited.Store(true)
		close(p.done)

		c.logger.Info("Service process exited",
			"service", desc.Name, "pid", cmd.Process.Pid, "launch_id", launchID, "error", err)
	}()

	c.logger.Info("Service process started",
		"service", desc.Name, "pid", cmd.Process.Pid, "launch_id", launchID, "command", desc.StartCommand)

	return p, nil
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig os.Signal) error {
	return signalGroup(p.cmd, sig)
}

func (p *execProcess) Kill() error {
	return killGroup(p.cmd)
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Exited() bool { return p.exited.Load() }

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

// Package shutdown runs prioritised cleanup tasks exactly once.
package shutdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
)

const (
	ExitOK        = 0
	ExitFailed    = 1
	ExitEmergency = 2
)

// Coordinator collects shutdown tasks while the process runs and executes
// them in priority order once. A failing, panicking or slow task is recorded
// and the rest still run.
type Coordinator struct {
	config   config.ShutdownConfig
	logger   *slog.Logger
	reaper   Reaper
	recorder TaskRecorder
	exit     func(code int)
	now      func() time.Time

	mu       sync.Mutex
	tasks    []Task
	state    State
	current  *models.ShutdownStats
	final    *models.ShutdownStats
	done     chan struct{}
	doneOnce sync.Once
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReaper sets what EmergencyShutdown uses to kill stragglers.
func WithReaper(r Reaper) Option {
	return func(c *Coordinator) { c.reaper = r }
}

// WithRecorder counts task outcomes.
func WithRecorder(r TaskRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) { c.exit = exit }
}

// WithClock overrides the clock used for stats timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator in the running state.
func NewCoordinator(cfg config.ShutdownConfig, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		config: cfg,
		logger: logger.With("component", "shutdown"),
		exit:   os.Exit,
		now:    time.Now,
		done:   make(chan struct{}),
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// Register adds a task. It fails once shutdown has started.
func (c *Coordinator) Register(t Task) error {
	if t.Run == nil && t.Start == nil {
		return fmt.Errorf("%w: %s", errNoHandler, t.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return fmt.Errorf("%w: cannot register %s", ErrShuttingDown, t.Name)
	}

	c.tasks = append(c.tasks, t)

	return nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Done is closed when shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Stats returns the result of the finished shutdown, or nil.
func (c *Coordinator) Stats() *models.ShutdownStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.final == nil {
		return nil
	}

	s := *c.final
	s.Errors = append([]string(nil), c.final.Errors...)

	return &s
}

// Shutdown runs every registered task and returns the stats. A second call
// waits for the first to finish and returns the same stats.
func (c *Coordinator) Shutdown(ctx context.Context, reason string) models.ShutdownStats {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		c.logger.Info("Shutdown already requested", "reason", reason)

		select {
		case <-c.done:
		case <-ctx.Done():
		}

		if s := c.Stats(); s != nil {
			return *s
		}

		return c.snapshot()
	}

	c.state = StateShuttingDown
	tasks := append([]Task(nil), c.tasks...)
	c.current = &models.ShutdownStats{
		RunID:      uuid.NewString(),
		Reason:     reason,
		StartTime:  c.now(),
		TasksTotal: len(tasks),
		Errors:     []string{},
	}
	c.mu.Unlock()

	c.logger.Info("Shutdown started", "reason", reason, "tasks", len(tasks))

	panicked := c.runTasks(ctx, tasks)
	if panicked != nil {
		c.logger.Error("Shutdown driver panicked", "panic", panicked)

		return c.EmergencyShutdown(fmt.Sprintf("shutdown panic: %v", panicked))
	}

	stats := c.finish(false, "")

	c.logger.Info("Shutdown complete",
		"run_id", stats.RunID,
		"duration", stats.Duration,
		"completed", stats.TasksCompleted,
		"failed", stats.TasksFailed)

	if c.config.ExitOnComplete {
		c.exit(ExitCode(&stats))
	}

	return stats
}

// runTasks returns the panic value if the driver itself panicked.
func (c *Coordinator) runTasks(ctx context.Context, tasks []Task) (panicked any) {
	defer func() {
		panicked = recover()
	}()

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})

	for i := range tasks {
		t := &tasks[i]
		start := c.now()

		err := c.runTask(ctx, t)

		c.mu.Lock()
		if err != nil {
			c.current.TasksFailed++
			c.current.Errors = append(c.current.Errors, fmt.Sprintf("%s: %v", t.Name, err))
		} else {
			c.current.TasksCompleted++
		}
		c.mu.Unlock()

		result := "ok"

		switch {
		case errors.Is(err, errTaskTimeout):
			result = "timeout"
		case err != nil:
			result = "error"
		}

		if c.recorder != nil {
			c.recorder.RecordShutdownTask(result)
		}

		c.logger.Info("Shutdown task finished",
			"task", t.Name, "priority", t.Priority, "result", result,
			"elapsed", c.now().Sub(start), "error", err)
	}

	return nil
}

func (c *Coordinator) timeoutFor(t *Task) time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}

	if d := c.config.TaskTimeout.Std(); d > 0 {
		return d
	}

	return config.DefaultTaskTimeout
}

// runTask races the task against its timeout. A task that overruns keeps
// running in its goroutine; its result is discarded.
func (c *Coordinator) runTask(ctx context.Context, t *Task) error {
	timeout := c.timeoutFor(t)

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("%w: %v", errTaskPanic, r)
			}
		}()

		if t.Run != nil {
			errCh <- t.Run(tctx)

			return
		}

		ch := t.Start(tctx)
		if ch == nil {
			errCh <- nil

			return
		}

		select {
		case err := <-ch:
			errCh <- err
		case <-tctx.Done():
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-tctx.Done():
	}

	// a result may have raced the deadline
	select {
	case err := <-errCh:
		return err
	default:
	}

	if t.CleanupOnTimeout && t.OnTimeout != nil {
		c.safeOnTimeout(t)
	}

	return fmt.Errorf("%w after %s", errTaskTimeout, timeout)
}

func (c *Coordinator) safeOnTimeout(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Timeout cleanup panicked", "task", t.Name, "panic", r)
		}
	}()

	t.OnTimeout()
}

// EmergencyShutdown skips the remaining tasks, kills managed processes and
// exits with ExitEmergency.
func (c *Coordinator) EmergencyShutdown(reason string) models.ShutdownStats {
	c.logger.Error("Emergency shutdown", "reason", reason)

	if c.reaper != nil {
		grace := c.config.EmergencyGrace.Std()
		if grace <= 0 {
			grace = config.DefaultEmergencyGrace
		}

		c.reaper.TerminateAll(grace)
	}

	stats := c.finish(true, reason)
	c.exit(ExitEmergency)

	return stats
}

// finish freezes the stats, persists them and releases Done waiters.
func (c *Coordinator) finish(emergency bool, reason string) models.ShutdownStats {
	c.mu.Lock()

	if c.final != nil {
		s := *c.final
		c.mu.Unlock()

		return s
	}

	if c.current == nil {
		c.current = &models.ShutdownStats{
			RunID:      uuid.NewString(),
			Reason:     reason,
			StartTime:  c.now(),
			TasksTotal: len(c.tasks),
			Errors:     []string{},
		}
	}

	s := *c.current
	s.Errors = append([]string{}, c.current.Errors...)
	s.EndTime = c.now()
	s.Duration = s.EndTime.Sub(s.StartTime).Seconds()

	if emergency {
		s.Emergency = true
		s.Errors = append(s.Errors, "emergency: "+reason)
	}

	c.final = &s
	c.state = StateShutdown
	c.mu.Unlock()

	if c.config.StatsFile != "" {
		if err := WriteStats(c.config.StatsFile, &s); err != nil {
			c.logger.Error("Failed to write shutdown stats", "path", c.config.StatsFile, "error", err)
		}
	}

	c.doneOnce.Do(func() { close(c.done) })

	return s
}

func (c *Coordinator) snapshot() models.ShutdownStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return models.ShutdownStats{}
	}

	s := *c.current
	s.Errors = append([]string(nil), c.current.Errors...)

	return s
}

// ListenForSignals shuts down on SIGINT or SIGTERM. A second signal while
// shutdown is running escalates to EmergencyShutdown.
func (c *Coordinator) ListenForSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case sig := <-sigCh:
				if c.State() == StateRunning {
					c.logger.Info("Received signal, shutting down", "signal", sig)

					go c.Shutdown(context.Background(), "signal: "+sig.String())

					continue
				}

				c.logger.Warn("Received second signal during shutdown", "signal", sig)
				c.EmergencyShutdown("second signal: " + sig.String())

				return
			}
		}
	}()
}

// ExitCode maps stats to the process exit code.
func ExitCode(s *models.ShutdownStats) int {
	switch {
	case s.Emergency:
		return ExitEmergency
	case s.TasksFailed > 0:
		return ExitFailed
	default:
		return ExitOK
	}
}

// WriteStats writes s as JSON through a temp file and rename.
func WriteStats(path string, s *models.ShutdownStats) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal shutdown stats: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp stats file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write stats: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close stats: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename stats: %w", err)
	}

	return nil
}

// ReadStats loads stats written by WriteStats.
func ReadStats(path string) (*models.ShutdownStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s models.ShutdownStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse shutdown stats %s: %w", path, err)
	}

	return &s, nil
}

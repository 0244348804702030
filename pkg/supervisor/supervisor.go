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

// Package supervisor starts, stops and probes the services of the local stack.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/mfreeman451/stackradar/pkg/checker"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/mfreeman451/stackradar/pkg/shutdown"
	"golang.org/x/sync/errgroup"
)

const (
	// service stop tasks run after models are unloaded (80) and before the
	// final log flush (0).
	serviceTaskBase  = 10
	serviceTaskRange = 60
	killWait         = 2 * time.Second
)

// StatusRecorder exports service liveness. metrics.Exporter implements it.
type StatusRecorder interface {
	SetServiceUp(name string, up bool)
}

// Supervisor owns the processes it spawned. Services that were already
// running when asked to start are probed but never signalled.
type Supervisor struct {
	config     config.SupervisorConfig
	services   map[string]models.ServiceDescriptor
	order      []string
	controller ProcessController
	checkers   checker.Registry
	recorder   StatusRecorder
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	procs map[string]Process
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithRecorder exports liveness on every Status call.
func WithRecorder(r StatusRecorder) Option {
	return func(s *Supervisor) { s.recorder = r }
}

// NewSupervisor creates a supervisor for services. They start in ascending
// Order, ties broken by name.
func NewSupervisor(
	cfg config.SupervisorConfig,
	services []models.ServiceDescriptor,
	controller ProcessController,
	checkers checker.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Supervisor {
	s := &Supervisor{
		config:     cfg,
		services:   make(map[string]models.ServiceDescriptor, len(services)),
		controller: controller,
		checkers:   checkers,
		logger:     logger.With("component", "supervisor"),
		sleep:      sleepCtx,
		procs:      make(map[string]Process),
	}

	for _, d := range services {
		s.services[d.Name] = d
		s.order = append(s.order, d.Name)
	}

	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.services[s.order[i]], s.services[s.order[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}

		return a.Name < b.Name
	})

	for _, o := range opts {
		o(s)
	}

	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Supervisor) descriptor(name string) (models.ServiceDescriptor, error) {
	d, ok := s.services[name]
	if !ok {
		return models.ServiceDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	return d, nil
}

func (s *Supervisor) portOpen(ctx context.Context, d models.ServiceDescriptor) bool {
	return checker.PortOpen(ctx, d.Host, d.Port, s.config.ProbeTimeout.Std())
}

// Start brings name up and waits for its health check. A service whose port
// is already accepting connections counts as started.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	desc, err := s.descriptor(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	proc, tracked := s.procs[name]
	s.mu.Unlock()

	if tracked && !proc.Exited() {
		s.logger.Debug("Service already managed", "service", name, "pid", proc.PID())

		return nil
	}

	if s.portOpen(ctx, desc) {
		s.logger.Info("Service already running", "service", name, "port", desc.Port)

		return nil
	}

	if len(desc.StartCommand) == 0 {
		return fmt.Errorf("%w: %s", errNoStartCommand, name)
	}

	check, err := s.checkers.Get(ctx, desc)
	if err != nil {
		return fmt.Errorf("health check for %s: %w", name, err)
	}

	proc, err = s.controller.Start(ctx, desc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.procs[name] = proc
	s.mu.Unlock()

	if err := s.awaitHealthy(ctx, desc, proc, check); err != nil {
		s.logger.Error("Service failed to start", "service", name, "pid", proc.PID(), "error", err)
		s.terminate(proc, s.config.StopGrace.Std())
		s.untrack(name, proc)

		return fmt.Errorf("start %s: %w", name, err)
	}

	s.logger.Info("Service healthy", "service", name, "pid", proc.PID())

	return nil
}

func (s *Supervisor) awaitHealthy(ctx context.Context, desc models.ServiceDescriptor, proc Process, check checker.Checker) error {
	deadline := time.Now().Add(s.config.StartTimeout.Std())
	interval := s.config.HealthInterval.Std()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout())
		ok, msg := check.Check(probeCtx)
		cancel()

		if ok {
			return nil
		}

		if proc.Exited() {
			return errExitedEarly
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", errStartTimeout, msg)
		}

		s.logger.Debug("Waiting for service", "service", desc.Name, "status", msg)

		select {
		case <-proc.Done():
			return errExitedEarly
		default:
		}

		if err := s.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (s *Supervisor) probeTimeout() time.Duration {
	if t := s.config.ProbeTimeout.Std(); t > 0 {
		return t
	}

	return config.DefaultProbeTimeout
}

// StartAll starts every service in order and stops at the first failure.
func (s *Supervisor) StartAll(ctx context.Context) error {
	for i, name := range s.order {
		if i > 0 {
			if err := s.sleep(ctx, s.config.StartPause.Std()); err != nil {
				return err
			}
		}

		if err := s.Start(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

// Stop sends SIGTERM, waits the stop grace and then SIGKILLs. Services not
// spawned by this supervisor are left alone.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if _, err := s.descriptor(name); err != nil {
		return err
	}

	s.mu.Lock()
	proc, ok := s.procs[name]
	s.mu.Unlock()

	if !ok {
		s.logger.Info("Service not managed, nothing to stop", "service", name)

		return nil
	}

	err := s.terminateCtx(ctx, proc, s.config.StopGrace.Std())
	s.untrack(name, proc)

	if err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}

	s.logger.Info("Service stopped", "service", name)

	return nil
}

// StopAll stops services in reverse start order.
func (s *Supervisor) StopAll(ctx context.Context) error {
	var errs []error

	for i := len(s.order) - 1; i >= 0; i-- {
		if err := s.Stop(ctx, s.order[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Restart stops name, pauses and starts it again.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	if err := s.Stop(ctx, name); err != nil {
		return err
	}

	if err := s.sleep(ctx, s.config.RestartPause.Std()); err != nil {
		return err
	}

	return s.Start(ctx, name)
}

// Status probes every service port in parallel.
func (s *Supervisor) Status(ctx context.Context) []models.ServiceStatus {
	out := make([]models.ServiceStatus, len(s.order))

	s.mu.Lock()
	procs := make(map[string]Process, len(s.procs))
	for k, v := range s.procs {
		procs[k] = v
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	for i, name := range s.order {
		desc := s.services[name]
		out[i] = models.ServiceStatus{Name: name, Host: desc.Host, Port: desc.Port}

		if p, ok := procs[name]; ok && !p.Exited() {
			out[i].Managed = true
			out[i].PID = p.PID()
		}

		g.Go(func() error {
			out[i].Running = s.portOpen(gctx, desc)

			return nil
		})
	}

	_ = g.Wait()

	if s.recorder != nil {
		for i := range out {
			s.recorder.SetServiceUp(out[i].Name, out[i].Running)
		}
	}

	return out
}

// TerminateAll signals every managed process, waits grace and kills the
// rest. It is the emergency reaper and ignores ordering.
func (s *Supervisor) TerminateAll(grace time.Duration) {
	s.mu.Lock()
	procs := make(map[string]Process, len(s.procs))
	for k, v := range s.procs {
		procs[k] = v
	}
	s.mu.Unlock()

	for name, p := range procs {
		if err := p.Signal(syscall.SIGTERM); err != nil && !p.Exited() {
			s.logger.Warn("SIGTERM failed", "service", name, "pid", p.PID(), "error", err)
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	for name, p := range procs {
		select {
		case <-p.Done():
		case <-deadline.C:
			// expired; fall through to kill everything left
			deadline.Reset(0)
		}

		if !p.Exited() {
			s.logger.Warn("Killing service", "service", name, "pid", p.PID())
			_ = p.Kill()
		}

		s.untrack(name, p)
	}
}

// ShutdownTasks returns one stop task per service. Later services (the UI)
// get higher priority so they stop first.
func (s *Supervisor) ShutdownTasks() []shutdown.Task {
	tasks := make([]shutdown.Task, 0, len(s.order))

	for i, name := range s.order {
		tasks = append(tasks, shutdown.Task{
			Name:     "stop-" + name,
			Priority: serviceTaskBase + min(i, serviceTaskRange),
			Timeout:  s.config.StopGrace.Std() + killWait + time.Second,
			Run: func(ctx context.Context) error {
				return s.Stop(ctx, name)
			},
		})
	}

	return tasks
}

func (s *Supervisor) untrack(name string, proc Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.procs[name] == proc {
		delete(s.procs, name)
	}
}

func (s *Supervisor) terminate(proc Process, grace time.Duration) {
	_ = s.terminateCtx(context.Background(), proc, grace)
}

// terminateCtx sends SIGTERM, then SIGKILL once grace or ctx expires.
func (s *Supervisor) terminateCtx(ctx context.Context, proc Process, grace time.Duration) error {
	if proc.Exited() {
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil && !proc.Exited() {
		s.logger.Warn("SIGTERM failed", "pid", proc.PID(), "error", err)
	}

	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-proc.Done():
		return nil
	case <-t.C:
	case <-ctx.Done():
	}

	s.logger.Warn("Service ignored SIGTERM, killing", "pid", proc.PID())

	if err := proc.Kill(); err != nil && !proc.Exited() {
		return err
	}

	k := time.NewTimer(killWait)
	defer k.Stop()

	select {
	case <-proc.Done():
		return nil
	case <-k.C:
		return errStillRunning
	}
}

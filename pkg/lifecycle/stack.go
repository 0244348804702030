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

package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mfreeman451/stackradar/pkg/alerts"
	"github.com/mfreeman451/stackradar/pkg/api"
	"github.com/mfreeman451/stackradar/pkg/checker"
	"github.com/mfreeman451/stackradar/pkg/collector"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/memory"
	"github.com/mfreeman451/stackradar/pkg/metrics"
	"github.com/mfreeman451/stackradar/pkg/monitoring"
	"github.com/mfreeman451/stackradar/pkg/shutdown"
	"github.com/mfreeman451/stackradar/pkg/supervisor"
)

// Stack holds every wired component of a running stackradar.
type Stack struct {
	Config      *config.Config
	Exporter    *metrics.Exporter
	Dispatcher  *alerts.Dispatcher
	Stream      *alerts.StreamChannel
	Memory      *memory.Manager
	Monitor     *monitoring.Monitor
	Supervisor  *supervisor.Supervisor
	API         *api.APIServer
	Health      *HealthServer
	Coordinator *shutdown.Coordinator

	logger *slog.Logger
}

// Options adjusts how a Stack is built.
type Options struct {
	// Source replaces the gopsutil sampler.
	Source collector.Source
	// Controller replaces the os/exec process controller.
	Controller supervisor.ProcessController
	// Console receives console alert lines. Nil disables the console channel.
	Console io.Writer
	// Exit replaces os.Exit in the shutdown coordinator.
	Exit func(code int)
}

// alertCounter feeds raised alerts into the exporter.
type alertCounter struct {
	recorder metrics.Recorder
}

func (a alertCounter) OnAlert(_ context.Context, ev alerts.Event) {
	if ev.Type == alerts.EventRaised {
		a.recorder.RecordAlert(&ev.Alert)
	}
}

// NewStack builds every component explicitly from cfg. Nothing is started.
func NewStack(cfg *config.Config, logger *slog.Logger, opts Options) (*Stack, error) {
	s := &Stack{
		Config:   cfg,
		Exporter: metrics.NewExporter(),
		logger:   logger.With("component", "lifecycle"),
	}

	channels, stream, err := alerts.BuildChannels(cfg.Alerts, logger, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("failed to build alert channels: %w", err)
	}

	s.Stream = stream
	s.Dispatcher = alerts.NewDispatcher(cfg.Alerts, logger, channels...)
	s.Dispatcher.AddObserver(alertCounter{recorder: s.Exporter})

	services := cfg.ServiceDescriptors()

	baseURLs := make(map[string]string, len(services))
	for _, d := range services {
		if d.BaseURL != "" {
			baseURLs[d.Name] = d.BaseURL
		}
	}

	s.Memory = memory.NewManager(cfg.Memory,
		memory.SystemProbe{},
		memory.NewHTTPUnloader(baseURLs, cfg.Memory.RequestTimeout.Std(), logger),
		logger,
		memory.WithRecorder(s.Exporter))
	s.Dispatcher.AddObserver(memory.NewPressureObserver(s.Memory, cfg.Memory.PressureMetrics, logger))

	source := opts.Source
	if source == nil {
		source = collector.NewSystemSource(collector.WithDiskPath(cfg.Monitor.DiskPath))
	}

	s.Monitor = monitoring.NewMonitor(cfg.Monitor, source, cfg.ThresholdRules(), s.Dispatcher, nil, logger,
		monitoring.WithRecorder(s.Exporter))

	controller := opts.Controller
	if controller == nil {
		controller = supervisor.NewExecController(logger)
	}

	s.Supervisor = supervisor.NewSupervisor(cfg.Supervisor, services, controller, checker.DefaultRegistry(), logger,
		supervisor.WithRecorder(s.Exporter))

	coordOpts := []shutdown.Option{
		shutdown.WithReaper(s.Supervisor),
		shutdown.WithRecorder(s.Exporter),
	}
	if opts.Exit != nil {
		coordOpts = append(coordOpts, shutdown.WithExit(opts.Exit))
	}

	s.Coordinator = shutdown.NewCoordinator(cfg.Shutdown, logger, coordOpts...)

	if cfg.API.Enabled {
		s.API = api.NewAPIServer(cfg.API, api.Deps{
			Metrics:    s.Monitor,
			Alerts:     s.Dispatcher,
			Models:     s.Memory,
			Services:   s.Supervisor,
			Stream:     s.Stream,
			Prometheus: s.Exporter.Handler(),
		}, logger)
	}

	if cfg.API.HealthAddr != "" {
		s.Health = NewHealthServer(cfg.API.HealthAddr, logger)
	}

	return s, nil
}

// Tasks returns the shutdown tasks in registration order. flush runs last.
func (s *Stack) Tasks(flush func() error) []shutdown.Task {
	var tasks []shutdown.Task

	if s.API != nil {
		tasks = append(tasks, s.API.ShutdownTask())
	}

	if s.Health != nil {
		tasks = append(tasks, s.Health.ShutdownTask())
	}

	tasks = append(tasks,
		shutdown.Task{Name: "monitor", Priority: 90, Run: s.Monitor.Stop},
		shutdown.Task{Name: "alert-stream", Priority: 85, Run: func(context.Context) error {
			s.Stream.Close()

			return nil
		}},
		shutdown.Task{Name: "models", Priority: 80, Run: s.Memory.UnloadAll},
	)

	tasks = append(tasks, s.Supervisor.ShutdownTasks()...)

	if flush != nil {
		tasks = append(tasks, shutdown.Task{Name: "log-flush", Priority: 0, Run: func(context.Context) error {
			return flush()
		}})
	}

	return tasks
}

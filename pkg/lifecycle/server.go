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

// Package lifecycle wires the stack together and runs it until shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/mfreeman451/stackradar/pkg/retry"
	"github.com/mfreeman451/stackradar/pkg/shutdown"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	MaxRecvSize = 4 * 1024 * 1024 // 4MB
	MaxSendSize = 4 * 1024 * 1024 // 4MB

	// ServiceName is the grpc health service stackradar reports under.
	ServiceName = "stackradar"

	healthTaskPriority = 95
)

// HealthServer exposes the grpc health protocol so other supervisors can
// probe stackradar itself.
type HealthServer struct {
	addr   string
	logger *slog.Logger
	health *health.Server

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
}

// NewHealthServer creates a health server for addr.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		addr:   addr,
		logger: logger.With("component", "health"),
		health: health.NewServer(),
	}
}

// Start listens and reports SERVING.
func (h *HealthServer) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil
	}

	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}

	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxRecvSize),
		grpc.MaxSendMsgSize(MaxSendSize),
	)

	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, h.health)

	h.server, h.listener = srv, lis

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			h.logger.Error("gRPC health server failed", "error", err)
		}
	}()

	h.logger.Info("gRPC health server listening", "addr", lis.Addr().String())

	return nil
}

// Addr is the bound address, or "" when not started.
func (h *HealthServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return ""
	}

	return h.listener.Addr().String()
}

// Stop reports NOT_SERVING and drains the server within ctx.
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.server, h.listener = nil, nil
	h.mu.Unlock()

	if srv == nil {
		return nil
	}

	h.health.Shutdown()

	done := make(chan struct{})

	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()

		return ctx.Err()
	}
}

// ShutdownTask stops health reporting right after the API.
func (h *HealthServer) ShutdownTask() shutdown.Task {
	return shutdown.Task{Name: "grpc-health", Priority: healthTaskPriority, Run: h.Stop}
}

// RunOptions controls Run.
type RunOptions struct {
	Options
	StartServices bool
	// Flush runs as the last shutdown task, typically closing the log file.
	Flush func() error
}

// Run builds the stack, starts it and blocks until shutdown completes. A
// cancelled ctx starts shutdown the same way a signal does.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts RunOptions) (models.ShutdownStats, error) {
	stack, err := NewStack(cfg, logger, opts.Options)
	if err != nil {
		return models.ShutdownStats{}, err
	}

	return stack.Run(ctx, opts.StartServices, opts.Flush)
}

// Run starts every component and waits for the coordinator to finish.
func (s *Stack) Run(ctx context.Context, startServices bool, flush func() error) (models.ShutdownStats, error) {
	for _, t := range s.Tasks(flush) {
		if err := s.Coordinator.Register(t); err != nil {
			return models.ShutdownStats{}, err
		}
	}

	s.logger.Info("Starting stackradar",
		"services", len(s.Config.Services), "rules", len(s.Config.Rules), "api", s.Config.API.Enabled)

	if err := s.Monitor.Start(ctx); err != nil {
		return models.ShutdownStats{}, fmt.Errorf("failed to start monitor: %w", err)
	}

	s.Coordinator.ListenForSignals(ctx)

	// A listener that cannot bind takes the whole process down.
	fatal := retry.Policy{
		Strategy: retry.Shutdown,
		Logger:   s.logger,
		OnShutdown: func(reason string) {
			go s.Coordinator.Shutdown(context.Background(), reason)
		},
	}

	if s.API != nil {
		fatal.Name = "api"
		_ = fatal.Do(ctx, func(context.Context) error { return s.API.Start() })
	}

	if s.Health != nil {
		fatal.Name = "grpc-health"
		_ = fatal.Do(ctx, func(context.Context) error { return s.Health.Start() })
	}

	if startServices {
		// A service that fails to start is reported, the monitor keeps running.
		best := retry.Policy{Strategy: retry.Ignore, Name: "start-services", Logger: s.logger}
		_ = best.Do(ctx, s.Supervisor.StartAll)
	}

	select {
	case <-s.Coordinator.Done():
	case <-ctx.Done():
		s.logger.Info("Context canceled, initiating shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownBudget())
		defer cancel()

		s.Coordinator.Shutdown(shutdownCtx, "context canceled")
	}

	stats := s.Coordinator.Stats()
	if stats == nil {
		return models.ShutdownStats{}, shutdown.ErrShuttingDown
	}

	return *stats, nil
}

// shutdownBudget bounds a ctx-triggered shutdown: every task at its timeout.
func (s *Stack) shutdownBudget() time.Duration {
	per := s.Config.Shutdown.TaskTimeout.Std()
	if per <= 0 {
		per = config.DefaultTaskTimeout
	}

	return per * time.Duration(len(s.Tasks(nil))+1)
}

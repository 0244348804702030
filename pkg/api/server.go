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

// Package api serves the local status API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/mfreeman451/stackradar/pkg/shutdown"
	"github.com/mfreeman451/stackradar/pkg/supervisor"
)

const (
	shutdownTaskPriority = 100
	actionTimeout        = 2 * time.Minute
)

// Deps are the components the API reads from. Nil members disable their
// routes' data; the routes still answer.
type Deps struct {
	Metrics    MetricsSource
	Alerts     AlertSource
	Models     ModelSource
	Services   ServiceController
	Stream     http.Handler
	Prometheus http.Handler
}

// APIServer is the HTTP front of the stack.
type APIServer struct {
	config  config.APIConfig
	deps    Deps
	router  *mux.Router
	logger  *slog.Logger
	started time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewAPIServer builds the router. Nothing listens until Start.
func NewAPIServer(cfg config.APIConfig, deps Deps, logger *slog.Logger) *APIServer {
	s := &APIServer{
		config:  cfg,
		deps:    deps,
		router:  mux.NewRouter(),
		logger:  logger.With("component", "api"),
		started: time.Now(),
	}
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(commonMiddleware)
	s.router.Use(loggingMiddleware(s.logger))

	s.router.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/api/metrics", s.getMetricKeys).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics/current", s.getCurrent).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics/{kind}/{metric}/history", s.getHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/metrics/{kind}/{metric}/stats", s.getStats).Methods(http.MethodGet)

	s.router.HandleFunc("/api/alerts", s.getAlerts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/alerts/history", s.getAlertHistory).Methods(http.MethodGet)

	if s.deps.Stream != nil {
		s.router.Handle("/api/alerts/stream", s.deps.Stream).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/api/models", s.getModels).Methods(http.MethodGet)

	s.router.HandleFunc("/api/services", s.getServices).Methods(http.MethodGet)
	s.router.HandleFunc("/api/services/{name}/{action:start|stop|restart}", s.serviceAction).
		Methods(http.MethodPost, http.MethodOptions)

	if s.deps.Prometheus != nil {
		s.router.Handle("/metrics", s.deps.Prometheus).Methods(http.MethodGet)
	}
}

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background.
func (s *APIServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errAlreadyRunning
	}

	addr := s.config.ListenAddr
	if addr == "" {
		addr = config.DefaultListenAddr
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", "error", err)
		}
	}(s.server)

	s.logger.Info("API server listening", "addr", listener.Addr().String())

	return nil
}

// Addr is the bound address, or "" before Start.
func (s *APIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down. Stopping twice is a no-op.
func (s *APIServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()

		return fmt.Errorf("api shutdown: %w", err)
	}

	s.logger.Info("API server stopped")

	return nil
}

// ShutdownTask stops the API before anything else.
func (s *APIServer) ShutdownTask() shutdown.Task {
	return shutdown.Task{
		Name:     "api",
		Priority: shutdownTaskPriority,
		Run:      s.Stop,
	}
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Error encoding response", "error", err)
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *APIServer) getStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		Timestamp:    time.Now(),
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Services:     []models.ServiceStatus{},
		ActiveAlerts: []models.Alert{},
		Resources:    map[string]models.ResourceSample{},
	}

	if s.deps.Services != nil {
		status.Services = s.deps.Services.Status(r.Context())
	}

	if s.deps.Alerts != nil {
		status.ActiveAlerts = s.deps.Alerts.Active()
	}

	if s.deps.Models != nil {
		st := s.deps.Models.Stats(r.Context())
		status.Memory = &st
	}

	if s.deps.Metrics != nil {
		status.Resources = s.deps.Metrics.Current()
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) getMetricKeys(w http.ResponseWriter, _ *http.Request) {
	keys := []string{}
	if s.deps.Metrics != nil {
		keys = s.deps.Metrics.Metrics()
	}

	s.writeJSON(w, http.StatusOK, keys)
}

func (s *APIServer) getCurrent(w http.ResponseWriter, _ *http.Request) {
	current := map[string]models.ResourceSample{}
	if s.deps.Metrics != nil {
		current = s.deps.Metrics.Current()
	}

	s.writeJSON(w, http.StatusOK, current)
}

// metricParams resolves {kind}/{metric} and ?window=.
func metricParams(r *http.Request) (models.ResourceKind, string, time.Duration, error) {
	vars := mux.Vars(r)

	kind, err := models.ParseResourceKind(vars["kind"])
	if err != nil {
		return "", "", 0, err
	}

	var window time.Duration

	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err = time.ParseDuration(raw)
		if err != nil || window < 0 {
			return "", "", 0, fmt.Errorf("%w: %q", errBadWindow, raw)
		}
	}

	return kind, vars["metric"], window, nil
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	kind, metric, window, err := metricParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := MetricHistory{Key: models.MetricKey(kind, metric), Samples: []models.ResourceSample{}}
	if window > 0 {
		resp.Window = window.String()
	}

	if s.deps.Metrics != nil {
		if samples := s.deps.Metrics.History(kind, metric, window); samples != nil {
			resp.Samples = samples
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) getStats(w http.ResponseWriter, r *http.Request) {
	kind, metric, window, err := metricParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var st models.Statistics
	if s.deps.Metrics != nil {
		st = s.deps.Metrics.Statistics(kind, metric, window)
	}

	s.writeJSON(w, http.StatusOK, st)
}

func (s *APIServer) getAlerts(w http.ResponseWriter, _ *http.Request) {
	active := []models.Alert{}
	if s.deps.Alerts != nil {
		active = s.deps.Alerts.Active()
	}

	s.writeJSON(w, http.StatusOK, active)
}

func (s *APIServer) getAlertHistory(w http.ResponseWriter, _ *http.Request) {
	history := []models.Alert{}
	if s.deps.Alerts != nil {
		if h := s.deps.Alerts.History(); h != nil {
			history = h
		}
	}

	s.writeJSON(w, http.StatusOK, history)
}

func (s *APIServer) getModels(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{Models: []models.ModelEntry{}}

	if s.deps.Models != nil {
		resp.Stats = s.deps.Models.Stats(r.Context())
		resp.Models = s.deps.Models.Entries()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) getServices(w http.ResponseWriter, r *http.Request) {
	services := []models.ServiceStatus{}
	if s.deps.Services != nil {
		services = s.deps.Services.Status(r.Context())
	}

	s.writeJSON(w, http.StatusOK, services)
}

// serviceAction runs start/stop/restart synchronously; starting waits for
// the health check, so the request can take a while.
func (s *APIServer) serviceAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, action := vars["name"], vars["action"]

	if s.deps.Services == nil {
		s.writeError(w, http.StatusServiceUnavailable, supervisor.ErrUnknownService)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), actionTimeout)
	defer cancel()

	var err error

	switch action {
	case "start":
		err = s.deps.Services.Start(ctx, name)
	case "stop":
		err = s.deps.Services.Stop(ctx, name)
	case "restart":
		err = s.deps.Services.Restart(ctx, name)
	}

	result := ActionResult{Service: name, Action: action, OK: err == nil}

	switch {
	case err == nil:
		s.logger.Info("Service action", "service", name, "action", action)
		s.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, supervisor.ErrUnknownService):
		result.Error = err.Error()
		s.writeJSON(w, http.StatusNotFound, result)
	default:
		s.logger.Error("Service action failed", "service", name, "action", action, "error", err)
		result.Error = err.Error()
		s.writeJSON(w, http.StatusInternalServerError, result)
	}
}

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

package checker

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func listenerPort(t *testing.T, l net.Listener) int {
	t.Helper()

	addr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)

	return addr.Port
}

func TestPortChecker(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := listenerPort(t, l)
	ctx := context.Background()

	c, err := DefaultRegistry().Get(ctx, models.ServiceDescriptor{Name: "svc", Host: "127.0.0.1", Port: port})
	require.NoError(t, err)

	ok, msg := c.Check(ctx)
	assert.True(t, ok, msg)

	require.NoError(t, l.Close())

	ok, _ = c.Check(ctx)
	assert.False(t, ok)
	assert.False(t, PortOpen(ctx, "127.0.0.1", port, 100*time.Millisecond))
}

func TestHTTPChecker(t *testing.T) {
	var healthy atomic.Bool

	healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)

			return
		}

		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	desc := models.ServiceDescriptor{
		Name:        "comfyui",
		HealthCheck: models.HealthCheck{Type: models.HealthHTTP, URL: srv.URL + "/system_stats"},
	}

	c, err := DefaultRegistry().Get(context.Background(), desc)
	require.NoError(t, err)

	ok, msg := c.Check(context.Background())
	assert.True(t, ok, msg)

	healthy.Store(false)

	ok, msg = c.Check(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "503")
}

func TestGRPCChecker(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	hs.SetServingStatus("inference", grpc_health_v1.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(l) }()
	defer srv.Stop()

	desc := models.ServiceDescriptor{
		Name: "inference",
		Host: "127.0.0.1",
		Port: listenerPort(t, l),
		HealthCheck: models.HealthCheck{
			Type:    models.HealthGRPC,
			Service: "inference",
			Timeout: 2 * time.Second,
		},
	}

	c, err := DefaultRegistry().Get(context.Background(), desc)
	require.NoError(t, err)

	ok, msg := c.Check(context.Background())
	assert.True(t, ok, msg)

	hs.SetServingStatus("inference", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ok, msg = c.Check(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "NOT_SERVING")
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(context.Background(), models.ServiceDescriptor{HealthCheck: models.HealthCheck{Type: "smoke"}})
	require.ErrorIs(t, err, errNoChecker)

	_, err = DefaultRegistry().Get(context.Background(), models.ServiceDescriptor{Port: 70000})
	require.ErrorIs(t, err, errInvalidPort)

	_, err = DefaultRegistry().Get(context.Background(), models.ServiceDescriptor{HealthCheck: models.HealthCheck{Type: models.HealthHTTP}})
	require.ErrorIs(t, err, errInvalidTarget)
}

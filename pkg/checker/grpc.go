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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCChecker asks the standard gRPC health service whether Service is SERVING.
type GRPCChecker struct {
	Addr    string
	Service string
	Timeout time.Duration
}

// NewGRPCChecker is the Factory for grpc health checks.
func NewGRPCChecker(_ context.Context, desc models.ServiceDescriptor) (Checker, error) {
	if desc.Port <= 0 || desc.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", errInvalidPort, desc.Port)
	}

	return &GRPCChecker{
		Addr:    net.JoinHostPort(desc.Host, strconv.Itoa(desc.Port)),
		Service: desc.HealthCheck.Service,
		Timeout: desc.HealthCheck.Timeout,
	}, nil
}

func (g *GRPCChecker) Check(ctx context.Context) (bool, string) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.NewClient(g.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return false, fmt.Sprintf("failed to create client for %s: %v", g.Addr, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: g.Service,
	})
	if err != nil {
		return false, fmt.Sprintf("health check failed: %v", err)
	}

	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return false, fmt.Sprintf("%s reports %s", g.Addr, resp.Status)
	}

	return true, fmt.Sprintf("%s is serving", g.Addr)
}

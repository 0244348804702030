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
)

const defaultDialTimeout = time.Second

// PortChecker reports whether something accepts TCP connections on Host:Port.
type PortChecker struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewPortChecker is the Factory for port health checks.
func NewPortChecker(_ context.Context, desc models.ServiceDescriptor) (Checker, error) {
	if desc.Port <= 0 || desc.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", errInvalidPort, desc.Port)
	}

	return &PortChecker{Host: desc.Host, Port: desc.Port, Timeout: desc.HealthCheck.Timeout}, nil
}

func (p *PortChecker) Check(ctx context.Context) (bool, string) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	d := net.Dialer{Timeout: timeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, fmt.Sprintf("Port %d is not accessible: %v", p.Port, err)
	}

	_ = conn.Close()

	return true, fmt.Sprintf("Port %d is accessible", p.Port)
}

// PortOpen is a one-off port probe.
func PortOpen(ctx context.Context, host string, port int, timeout time.Duration) bool {
	ok, _ := (&PortChecker{Host: host, Port: port, Timeout: timeout}).Check(ctx)

	return ok
}

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
	"errors"
	"fmt"
	"sync"

	"github.com/mfreeman451/stackradar/pkg/models"
)

var (
	errNoChecker = errors.New("no checker found")
)

// Factory is a function type returning a Checker.
type Factory func(ctx context.Context, desc models.ServiceDescriptor) (Checker, error)

// Registry defines how to store and retrieve checker factories.
type Registry interface {
	Register(checkType models.HealthCheckType, factory Factory)
	Get(ctx context.Context, desc models.ServiceDescriptor) (Checker, error)
}

// checkerRegistry is a simple in-memory implementation of Registry.
type checkerRegistry struct {
	mu        sync.RWMutex
	factories map[models.HealthCheckType]Factory
}

func NewRegistry() Registry {
	return &checkerRegistry{
		factories: make(map[models.HealthCheckType]Factory),
	}
}

// DefaultRegistry knows the http, port and grpc checkers.
func DefaultRegistry() Registry {
	r := NewRegistry()
	r.Register(models.HealthHTTP, NewHTTPChecker)
	r.Register(models.HealthPort, NewPortChecker)
	r.Register(models.HealthGRPC, NewGRPCChecker)

	return r
}

func (r *checkerRegistry) Register(checkType models.HealthCheckType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[checkType] = factory
}

func (r *checkerRegistry) Get(ctx context.Context, desc models.ServiceDescriptor) (Checker, error) {
	checkType := desc.HealthCheck.Type
	if checkType == "" {
		checkType = models.HealthPort
	}

	r.mu.RLock()
	f, ok := r.factories[checkType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoChecker, checkType)
	}

	return f(ctx, desc)
}

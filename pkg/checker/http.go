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
	"io"
	"net/http"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
)

const defaultHTTPTimeout = 2 * time.Second

// HTTPChecker passes when a GET on URL answers 2xx.
type HTTPChecker struct {
	URL    string
	client *http.Client
}

// NewHTTPChecker is the Factory for http health checks. Without an explicit
// URL it probes http://host:port/.
func NewHTTPChecker(_ context.Context, desc models.ServiceDescriptor) (Checker, error) {
	url := desc.HealthCheck.URL
	if url == "" {
		if desc.Port <= 0 {
			return nil, fmt.Errorf("%w: %s has neither url nor port", errInvalidTarget, desc.Name)
		}

		url = fmt.Sprintf("http://%s:%d/", desc.Host, desc.Port)
	}

	timeout := desc.HealthCheck.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPChecker{URL: url, client: &http.Client{Timeout: timeout}}, nil
}

func (h *HTTPChecker) Check(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, http.NoBody)
	if err != nil {
		return false, fmt.Sprintf("invalid health url %s: %v", h.URL, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("GET %s failed: %v", h.URL, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("GET %s returned %d", h.URL, resp.StatusCode)
	}

	return true, fmt.Sprintf("GET %s returned %d", h.URL, resp.StatusCode)
}

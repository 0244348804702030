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

package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mfreeman451/stackradar/pkg/retry"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPUnloader calls the unload endpoints of the owning services:
// POST <base>/unload_model {"model": name} and POST <base>/free_memory.
type HTTPUnloader struct {
	baseURLs map[string]string
	client   *http.Client
	policy   retry.Policy
	logger   *slog.Logger
}

// NewHTTPUnloader creates an unloader for services keyed by name.
func NewHTTPUnloader(baseURLs map[string]string, timeout time.Duration, logger *slog.Logger) *HTTPUnloader {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	l := logger.With("component", "memory", "unloader", "http")

	return &HTTPUnloader{
		baseURLs: baseURLs,
		client:   &http.Client{Timeout: timeout},
		policy:   retry.Backoff("model unload", 2, 250*time.Millisecond, l),
		logger:   l,
	}
}

// Unload implements Unloader.
func (u *HTTPUnloader) Unload(ctx context.Context, service, model string) error {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return err
	}

	return u.post(ctx, service, "/unload_model", body)
}

// FreeMemory implements Unloader.
func (u *HTTPUnloader) FreeMemory(ctx context.Context, service string) error {
	return u.post(ctx, service, "/free_memory", []byte("{}"))
}

func (u *HTTPUnloader) post(ctx context.Context, service, path string, body []byte) error {
	base, ok := u.baseURLs[service]
	if !ok || base == "" {
		return fmt.Errorf("%w: %s", errUnknownService, service)
	}

	url := strings.TrimRight(base, "/") + path

	return u.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := u.client.Do(req)
		if err != nil {
			return fmt.Errorf("POST %s: %w", url, err)
		}
		defer resp.Body.Close()

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("%w: POST %s status=%d", errServiceStatus, url, resp.StatusCode)
			if resp.StatusCode < http.StatusInternalServerError {
				return retry.Permanent(err)
			}

			return err
		}

		return nil
	})
}

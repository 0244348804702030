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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running APIServer. The CLI uses it.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for addr, which may omit the scheme.
func NewClient(addr string, timeout time.Duration) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (*SystemStatus, error) {
	var st SystemStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", &st); err != nil {
		return nil, err
	}

	return &st, nil
}

// ServiceAction posts start, stop or restart for name.
func (c *Client) ServiceAction(ctx context.Context, name, action string) (*ActionResult, error) {
	var res ActionResult

	path := "/api/services/" + url.PathEscape(name) + "/" + url.PathEscape(action)
	if err := c.do(ctx, http.MethodPost, path, &res); err != nil {
		if res.Error != "" {
			return &res, fmt.Errorf("%s %s: %s", action, name, res.Error)
		}

		return nil, err
	}

	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	// action failures carry an ActionResult body, so decode before the status check
	decodeErr := json.Unmarshal(body, out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", path, decodeErr)
	}

	return nil
}

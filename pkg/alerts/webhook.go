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

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/retry"
	"golang.org/x/time/rate"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookAlert is the JSON body posted for each event.
type WebhookAlert struct {
	AlertID   string  `json:"alert_id"`
	Timestamp string  `json:"timestamp"`
	Level     string  `json:"level"`
	Resource  string  `json:"resource"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
	Resolved  bool    `json:"resolved,omitempty"`
}

// WebhookChannel posts alerts to an HTTP endpoint, optionally through a
// text/template payload. Sends beyond the configured rate are dropped.
type WebhookChannel struct {
	config     config.WebhookConfig
	client     *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *slog.Logger
	tmpl       *template.Template
	bufferPool *sync.Pool
}

// NewWebhookChannel creates a webhook channel. A template value of "discord"
// selects the built-in Discord embed payload.
func NewWebhookChannel(cfg config.WebhookConfig, logger *slog.Logger) (*WebhookChannel, error) {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	w := &WebhookChannel{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "alerts", "channel", "webhook"),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}

	w.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		w.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	w.policy = retry.Backoff("webhook", cfg.MaxAttempts, 500*time.Millisecond, w.logger)

	body := cfg.Template
	if strings.EqualFold(body, "discord") {
		body = DiscordTemplate
	}

	if body != "" {
		tmpl, err := template.New("webhook").Funcs(w.getTemplateFuncs()).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errTemplateParse, err)
		}

		w.tmpl = tmpl
	}

	return w, nil
}

func (*WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) IsEnabled() bool {
	return w.config.Enabled
}

func (w *WebhookChannel) getTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("JSON marshaling failed: %w", err)
			}

			return string(b), nil
		},
	}
}

// Notify implements Channel.
func (w *WebhookChannel) Notify(ctx context.Context, ev Event) error {
	if !w.IsEnabled() {
		return errWebhookDisabled
	}

	if !w.limiter.Allow() {
		return fmt.Errorf("%w: %s", errWebhookRateLimited, ev.Alert.ID)
	}

	payload, err := w.preparePayload(newWebhookAlert(ev))
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return w.policy.Do(ctx, func(ctx context.Context) error {
		return w.sendRequest(ctx, payload)
	})
}

func newWebhookAlert(ev Event) *WebhookAlert {
	a := &ev.Alert
	ts := a.CreatedAt

	if ev.Type == EventResolved && a.ResolvedAt != nil {
		ts = *a.ResolvedAt
	}

	return &WebhookAlert{
		AlertID:   a.ID,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Level:     a.Severity.String(),
		Resource:  string(a.Kind),
		Metric:    a.Metric,
		Value:     a.ObservedValue,
		Threshold: a.ThresholdValue,
		Message:   a.Message,
		Resolved:  ev.Type == EventResolved,
	}
}

func (w *WebhookChannel) preparePayload(alert *WebhookAlert) ([]byte, error) {
	if w.tmpl == nil {
		return json.Marshal(alert)
	}

	buf := w.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.bufferPool.Put(buf)

	if err := w.tmpl.Execute(buf, map[string]interface{}{
		"alert": alert,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateExecution, err)
	}

	if !json.Valid(buf.Bytes()) {
		return nil, errInvalidJSON
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (w *WebhookChannel) sendRequest(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	w.setHeaders(req)

	resp, err := w.client.Do(req) //nolint:bodyclose // Response body is closed later
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			w.logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, body)

		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(statusErr)
		}

		return statusErr
	}

	return nil
}

func (w *WebhookChannel) setHeaders(req *http.Request) {
	hasContentType := false

	for _, header := range w.config.Headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}

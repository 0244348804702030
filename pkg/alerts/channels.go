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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// LogChannel writes alerts to the structured log.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With("component", "alerts", "channel", "log")}
}

func (*LogChannel) Name() string { return "log" }

func (c *LogChannel) Notify(ctx context.Context, ev Event) error {
	a := &ev.Alert
	attrs := []any{
		"alert_id", a.ID,
		"rule", a.RuleKey,
		"severity", a.Severity,
		"value", a.ObservedValue,
		"threshold", a.ThresholdValue,
	}

	if ev.Type == EventResolved {
		c.logger.InfoContext(ctx, "Alert resolved: "+a.Message, attrs...)

		return nil
	}

	level := slog.LevelError
	if a.Severity == models.SeverityWarning {
		level = slog.LevelWarn
	}

	c.logger.Log(ctx, level, a.Message, attrs...)

	return nil
}

// FileChannel appends one JSON alert per line to a file.
type FileChannel struct {
	path string
	mu   sync.Mutex
}

// NewFileChannel creates a FileChannel writing to path.
func NewFileChannel(path string) *FileChannel {
	return &FileChannel{path: path}
}

func (*FileChannel) Name() string { return "file" }

func (c *FileChannel) Notify(_ context.Context, ev Event) error {
	line, err := json.Marshal(ev.Alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create alert log directory: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open alert log '%s': %w", c.path, err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to write alert log: %w", err)
	}

	return f.Close()
}

// ConsoleChannel prints a readable block per event.
type ConsoleChannel struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleChannel creates a ConsoleChannel writing to w.
func NewConsoleChannel(w io.Writer) *ConsoleChannel {
	return &ConsoleChannel{w: w}
}

func (*ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Notify(_ context.Context, ev Event) error {
	a := &ev.Alert

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error

	if ev.Type == EventResolved {
		_, err = fmt.Fprintf(c.w, "\n[RESOLVED] %s at %s\n  %s\n",
			a.RuleKey, a.ResolvedAt.Format("2006-01-02 15:04:05"), a.Message)
	} else {
		_, err = fmt.Fprintf(c.w, "\n[%s] %s at %s\n  %s\n",
			a.Severity, a.RuleKey, a.CreatedAt.Format("2006-01-02 15:04:05"), a.Message)
	}

	return err
}

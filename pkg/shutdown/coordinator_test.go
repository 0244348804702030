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

package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (e *exitRecorder) exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.codes = append(e.codes, code)
}

func (e *exitRecorder) list() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]int(nil), e.codes...)
}

type reaperFunc func(grace time.Duration)

func (f reaperFunc) TerminateAll(grace time.Duration) { f(grace) }

func newTestCoordinator(t *testing.T, cfg config.ShutdownConfig, opts ...Option) (*Coordinator, *exitRecorder) {
	t.Helper()

	ex := &exitRecorder{}
	opts = append([]Option{WithExit(ex.exit)}, opts...)

	return NewCoordinator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), ex
}

func TestTasksRunByPriorityDescending(t *testing.T) {
	c, ex := newTestCoordinator(t, config.ShutdownConfig{TaskTimeout: config.Duration(time.Second)})

	var (
		mu    sync.Mutex
		order []int
	)

	for _, p := range []int{10, 90, 50} {
		require.NoError(t, c.Register(Task{
			Name:     "task",
			Priority: p,
			Run: func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()

				order = append(order, p)

				return nil
			},
		}))
	}

	stats := c.Shutdown(context.Background(), "test")

	assert.Equal(t, []int{90, 50, 10}, order)
	assert.Equal(t, 3, stats.TasksTotal)
	assert.Equal(t, 3, stats.TasksCompleted)
	assert.Zero(t, stats.TasksFailed)
	assert.Equal(t, "test", stats.Reason)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, StateShutdown, c.State())
	assert.Empty(t, ex.list())
	assert.Equal(t, ExitOK, ExitCode(&stats))
}

func TestEqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	c, _ := newTestCoordinator(t, config.ShutdownConfig{})

	var order []string

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, c.Register(Task{Name: name, Priority: 5, Run: func(context.Context) error {
			order = append(order, name)

			return nil
		}}))
	}

	c.Shutdown(context.Background(), "test")
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestShutdownIsIdempotent(t *testing.T) {
	c, _ := newTestCoordinator(t, config.ShutdownConfig{})

	var runs atomic.Int32

	require.NoError(t, c.Register(Task{Name: "count", Run: func(context.Context) error {
		runs.Add(1)

		return nil
	}}))

	first := c.Shutdown(context.Background(), "first")
	second := c.Shutdown(context.Background(), "second")

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, "first", second.Reason)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRegisterRejectedAfterShutdown(t *testing.T) {
	c, _ := newTestCoordinator(t, config.ShutdownConfig{})
	c.Shutdown(context.Background(), "test")

	err := c.Register(Task{Name: "late", Run: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestRegisterRequiresHandler(t *testing.T) {
	c, _ := newTestCoordinator(t, config.ShutdownConfig{})

	require.ErrorIs(t, c.Register(Task{Name: "empty"}), errNoHandler)
}

func TestTimeoutAndFailuresAreIsolated(t *testing.T) {
	c, ex := newTestCoordinator(t, config.ShutdownConfig{ExitOnComplete: true})

	var (
		cleaned atomic.Bool
		ranLast atomic.Bool
	)

	require.NoError(t, c.Register(Task{
		Name:             "slow",
		Priority:         100,
		Timeout:          20 * time.Millisecond,
		CleanupOnTimeout: true,
		OnTimeout:        func() { cleaned.Store(true) },
		Run: func(context.Context) error {
			time.Sleep(time.Second)

			return nil
		},
	}))
	require.NoError(t, c.Register(Task{Name: "fails", Priority: 50, Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, c.Register(Task{Name: "panics", Priority: 40, Run: func(context.Context) error {
		panic("bad")
	}}))
	require.NoError(t, c.Register(Task{Name: "last", Priority: 1, Run: func(context.Context) error {
		ranLast.Store(true)

		return nil
	}}))

	stats := c.Shutdown(context.Background(), "test")

	assert.True(t, cleaned.Load())
	assert.True(t, ranLast.Load())
	assert.Equal(t, 4, stats.TasksTotal)
	assert.Equal(t, 1, stats.TasksCompleted)
	assert.Equal(t, 3, stats.TasksFailed)
	require.Len(t, stats.Errors, 3)
	assert.Contains(t, stats.Errors[0], "slow")
	assert.Contains(t, stats.Errors[0], "timed out")
	assert.Contains(t, stats.Errors[1], "boom")
	assert.Contains(t, stats.Errors[2], "panicked")
	assert.Equal(t, []int{ExitFailed}, ex.list())
}

func TestAsyncTask(t *testing.T) {
	c, _ := newTestCoordinator(t, config.ShutdownConfig{})

	require.NoError(t, c.Register(Task{Name: "async", Timeout: time.Second, Start: func(context.Context) <-chan error {
		ch := make(chan error, 1)

		go func() {
			time.Sleep(5 * time.Millisecond)
			ch <- nil
		}()

		return ch
	}}))
	require.NoError(t, c.Register(Task{Name: "async-hangs", Timeout: 20 * time.Millisecond, Start: func(context.Context) <-chan error {
		return make(chan error)
	}}))

	stats := c.Shutdown(context.Background(), "test")

	assert.Equal(t, 1, stats.TasksCompleted)
	assert.Equal(t, 1, stats.TasksFailed)
}

func TestStatsPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "shutdown_stats.json")
	c, _ := newTestCoordinator(t, config.ShutdownConfig{StatsFile: path})

	require.NoError(t, c.Register(Task{Name: "fails", Run: func(context.Context) error {
		return errors.New("boom")
	}}))

	stats := c.Shutdown(context.Background(), "signal: terminated")

	loaded, err := ReadStats(path)
	require.NoError(t, err)
	assert.Equal(t, stats.RunID, loaded.RunID)
	assert.Equal(t, "signal: terminated", loaded.Reason)
	assert.Equal(t, 1, loaded.TasksFailed)
	assert.Equal(t, []string{"fails: boom"}, loaded.Errors)
	assert.False(t, loaded.Emergency)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmergencyShutdown(t *testing.T) {
	var reaped time.Duration

	c, ex := newTestCoordinator(t,
		config.ShutdownConfig{EmergencyGrace: config.Duration(3 * time.Second)},
		WithReaper(reaperFunc(func(g time.Duration) { reaped = g })))

	stats := c.EmergencyShutdown("second signal")

	assert.Equal(t, 3*time.Second, reaped)
	assert.True(t, stats.Emergency)
	assert.Equal(t, []int{ExitEmergency}, ex.list())
	assert.Equal(t, ExitEmergency, ExitCode(&stats))
	assert.Equal(t, StateShutdown, c.State())
}

type panickyRecorder struct{}

func (panickyRecorder) RecordShutdownTask(string) { panic("recorder broke") }

func TestDriverPanicEscalates(t *testing.T) {
	var reaped atomic.Bool

	c, ex := newTestCoordinator(t, config.ShutdownConfig{},
		WithRecorder(panickyRecorder{}),
		WithReaper(reaperFunc(func(time.Duration) { reaped.Store(true) })))

	require.NoError(t, c.Register(Task{Name: "ok", Run: func(context.Context) error { return nil }}))

	stats := c.Shutdown(context.Background(), "test")

	assert.True(t, stats.Emergency)
	assert.True(t, reaped.Load())
	assert.Equal(t, []int{ExitEmergency}, ex.list())
}

type countRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *countRecorder) RecordShutdownTask(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[result]++
}

func TestRecorderCountsResults(t *testing.T) {
	rec := &countRecorder{results: map[string]int{}}
	c, _ := newTestCoordinator(t, config.ShutdownConfig{}, WithRecorder(rec))

	require.NoError(t, c.Register(Task{Name: "ok", Run: func(context.Context) error { return nil }}))
	require.NoError(t, c.Register(Task{Name: "bad", Run: func(context.Context) error { return errors.New("x") }}))
	require.NoError(t, c.Register(Task{Name: "slow", Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)

		return nil
	}}))

	c.Shutdown(context.Background(), "test")

	assert.Equal(t, map[string]int{"ok": 1, "error": 1, "timeout": 1}, rec.results)
}

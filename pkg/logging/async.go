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

package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AsyncWriter hands writes to a single goroutine through a bounded queue.
// A write that finds the queue full is dropped and counted.
type AsyncWriter struct {
	out     io.WriteCloser
	queue   chan []byte
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncWriter starts the writer goroutine.
func NewAsyncWriter(out io.WriteCloser, size int) *AsyncWriter {
	if size <= 0 {
		size = 1
	}

	w := &AsyncWriter{
		out:   out,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)

	for p := range w.queue {
		_, _ = w.out.Write(p)
	}
}

// Write never blocks. The slice is copied because slog reuses its buffers.
func (w *AsyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return len(p), nil
	}

	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case w.queue <- buf:
	default:
		w.dropped.Add(1)
	}

	return len(p), nil
}

// Dropped returns the number of writes discarded so far.
func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close drains the queue and closes the underlying writer.
func (w *AsyncWriter) Close() error {
	var err error

	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()

		<-w.done
		err = w.out.Close()
	})

	return err
}

// fanout sends each record to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error

	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}

	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}

	return out
}

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

package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRetrySucceedsAfterFailures(t *testing.T) {
	p := Backoff("flaky", 3, time.Millisecond, quiet())

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	p := Backoff("broken", 2, time.Millisecond, quiet())

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	p := Backoff("slow", 5, time.Hour, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context) error { return errBoom })
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, errBoom)
}

func TestDelayIsCapped(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestIgnoreFallbackShutdown(t *testing.T) {
	fail := func(context.Context) error { return errBoom }

	ignore := Policy{Strategy: Ignore, Logger: quiet()}
	assert.NoError(t, ignore.Do(context.Background(), fail))

	fallback := Policy{Strategy: Fallback, Logger: quiet(), Fallback: func(_ context.Context, err error) error {
		assert.ErrorIs(t, err, errBoom)
		return nil
	}}
	assert.NoError(t, fallback.Do(context.Background(), fail))

	noFallback := Policy{Strategy: Fallback, Logger: quiet()}
	assert.ErrorIs(t, noFallback.Do(context.Background(), fail), errNoFallback)

	var reason string

	shutdown := Policy{Strategy: Shutdown, Name: "driver", Logger: quiet(), OnShutdown: func(r string) { reason = r }}
	assert.ErrorIs(t, shutdown.Do(context.Background(), fail), errBoom)
	assert.Equal(t, "driver: boom", reason)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	p := Backoff("rejected", 5, time.Millisecond, quiet())

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++

		return Permanent(errBoom)
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

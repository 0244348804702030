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

// Package retry applies an explicit error policy at a call site.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Strategy selects what happens when an operation fails.
type Strategy int

const (
	// Ignore runs once and logs the error without returning it.
	Ignore Strategy = iota
	// Retry reruns with exponential backoff up to MaxAttempts.
	Retry
	// Fallback runs once and hands the error to Fallback.
	Fallback
	// Shutdown runs once and calls OnShutdown with the error.
	Shutdown
)

func (s Strategy) String() string {
	switch s {
	case Ignore:
		return "ignore"
	case Retry:
		return "retry"
	case Fallback:
		return "fallback"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

var errNoFallback = errors.New("fallback strategy without fallback func")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that a Retry policy returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// Policy describes how one call site handles failure.
type Policy struct {
	Strategy     Strategy
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Fallback     func(ctx context.Context, err error) error
	OnShutdown   func(reason string)
	Logger       *slog.Logger
	Name         string
}

// Backoff returns a Retry policy with the usual doubling delays.
func Backoff(name string, attempts int, initial time.Duration, logger *slog.Logger) Policy {
	return Policy{
		Strategy:     Retry,
		MaxAttempts:  attempts,
		InitialDelay: initial,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Logger:       logger,
		Name:         name,
	}
}

// Delay returns the wait before attempt n (1-based retry count).
func (p *Policy) Delay(n int) time.Duration {
	if p.InitialDelay <= 0 || n <= 0 {
		return 0
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.InitialDelay)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}

	return time.Duration(d)
}

func (p *Policy) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}

	return slog.Default()
}

// Do runs op under the policy.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	switch p.Strategy {
	case Retry:
		return p.retry(ctx, op)
	case Fallback:
		err := op(ctx)
		if err == nil {
			return nil
		}

		if p.Fallback == nil {
			return fmt.Errorf("%w: %w", errNoFallback, err)
		}

		p.log().Warn("operation failed, using fallback", "operation", p.Name, "error", err)

		return p.Fallback(ctx, err)
	case Shutdown:
		err := op(ctx)
		if err != nil {
			p.log().Error("operation failed, requesting shutdown", "operation", p.Name, "error", err)

			if p.OnShutdown != nil {
				p.OnShutdown(fmt.Sprintf("%s: %v", p.Name, err))
			}
		}

		return err
	case Ignore:
		if err := op(ctx); err != nil {
			p.log().Warn("operation failed, ignoring", "operation", p.Name, "error", err)
		}

		return nil
	default:
		return op(ctx)
	}
}

func (p *Policy) retry(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = op(ctx); lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		p.log().Debug("operation failed, retrying",
			"operation", p.Name, "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

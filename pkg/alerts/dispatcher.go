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
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
)

const defaultHistoryLimit = 1000

// Dispatcher owns alert state: one active alert per rule key, a bounded
// history and a per-key cooldown. Delivery happens outside the state lock.
type Dispatcher struct {
	cooldown     time.Duration
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	channels  []Channel
	observers []Observer
	active    map[string]*models.Alert
	lastSent  map[string]time.Time
	history   []models.Alert
}

// NewDispatcher creates a dispatcher delivering to channels.
func NewDispatcher(cfg config.AlertsConfig, logger *slog.Logger, channels ...Channel) *Dispatcher {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return &Dispatcher{
		cooldown:     cfg.Cooldown.Std(),
		historyLimit: limit,
		logger:       logger.With("component", "alerts"),
		now:          time.Now,
		channels:     channels,
		active:       make(map[string]*models.Alert),
		lastSent:     make(map[string]time.Time),
	}
}

// AddChannel registers another delivery channel.
func (d *Dispatcher) AddChannel(c Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.channels = append(d.channels, c)
}

// AddObserver registers o for every raised and resolved alert.
func (d *Dispatcher) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, o)
}

// RemoveObserver unregisters o. It reports whether o was registered.
func (d *Dispatcher) RemoveObserver(o Observer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, existing := range d.observers {
		if existing == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)

			return true
		}
	}

	return false
}

// Dispatch records alert as the active alert of its rule and delivers it.
// It returns false when the rule key is still in cooldown. Escalating to a
// strictly more severe level than the active alert ignores the cooldown.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) bool {
	now := d.now()

	d.mu.Lock()

	key := alert.RuleKey
	active := d.active[key]
	escalation := active != nil && alert.Severity > active.Severity

	if last, ok := d.lastSent[key]; ok && !escalation && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		d.logger.Debug("Alert suppressed by cooldown",
			"rule", key, "severity", alert.Severity, "since_last", now.Sub(last))

		return false
	}

	a := *alert
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	if a.ID == "" {
		a.ID = models.AlertID(key, a.CreatedAt)
	}

	if a.Message == "" {
		a.Message = FormatMessage(&a)
	}

	stored := a
	d.active[key] = &stored
	d.lastSent[key] = now
	d.appendHistory(a)

	observers, channels := d.snapshot()
	d.mu.Unlock()

	d.deliver(ctx, Event{Type: EventRaised, Alert: a}, observers, channels)

	return true
}

// Resolve clears the active alert of ruleKey. It reports whether one existed.
func (d *Dispatcher) Resolve(ctx context.Context, ruleKey string) bool {
	now := d.now()

	d.mu.Lock()

	active, ok := d.active[ruleKey]
	if !ok {
		d.mu.Unlock()

		return false
	}

	delete(d.active, ruleKey)

	a := *active
	a.Resolved = true
	a.ResolvedAt = &now
	d.appendHistory(a)

	observers, channels := d.snapshot()
	d.mu.Unlock()

	d.deliver(ctx, Event{Type: EventResolved, Alert: a}, observers, channels)

	return true
}

// appendHistory must be called with mu held.
func (d *Dispatcher) appendHistory(a models.Alert) {
	d.history = append(d.history, a)

	if over := len(d.history) - d.historyLimit; over > 0 {
		d.history = append(d.history[:0:0], d.history[over:]...)
	}
}

func (d *Dispatcher) snapshot() ([]Observer, []Channel) {
	return append([]Observer(nil), d.observers...), append([]Channel(nil), d.channels...)
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event, observers []Observer, channels []Channel) {
	for _, o := range observers {
		o.OnAlert(ctx, ev)
	}

	for _, c := range channels {
		if err := c.Notify(ctx, ev); err != nil {
			d.logger.Error("Alert channel failed",
				"channel", c.Name(), "rule", ev.Alert.RuleKey, "alert_id", ev.Alert.ID, "error", err)
		}
	}
}

// Active returns the active alerts, oldest first.
func (d *Dispatcher) Active() []models.Alert {
	d.mu.Lock()
	out := make([]models.Alert, 0, len(d.active))

	for _, a := range d.active {
		out = append(out, *a)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RuleKey < out[j].RuleKey
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

// ActiveFor returns a copy of the active alert of ruleKey, or nil.
func (d *Dispatcher) ActiveFor(ruleKey string) *models.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.active[ruleKey]
	if !ok {
		return nil
	}

	cp := *a

	return &cp
}

// History returns raised and resolved alerts, oldest first.
func (d *Dispatcher) History() []models.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]models.Alert(nil), d.history...)
}

// Counts returns the number of active alerts per severity.
func (d *Dispatcher) Counts() map[models.Severity]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[models.Severity]int)
	for _, a := range d.active {
		counts[a.Severity]++
	}

	return counts
}

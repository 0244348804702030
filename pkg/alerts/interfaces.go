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

// Package alerts pkg/alerts/interfaces.go

//go:generate mockgen -destination=mock_alerts.go -package=alerts github.com/mfreeman451/stackradar/pkg/alerts Channel,Observer

package alerts

import (
	"context"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// EventType distinguishes raised alerts from resolutions.
type EventType string

const (
	EventRaised   EventType = "raised"
	EventResolved EventType = "resolved"
)

// Event is what channels and observers receive.
type Event struct {
	Type  EventType    `json:"type"`
	Alert models.Alert `json:"alert"`
}

// Channel delivers alert events somewhere outside the process.
type Channel interface {
	// Name identifies the channel in logs
	Name() string

	// Notify delivers one event. Errors are logged by the dispatcher and
	// never stop delivery to other channels.
	Notify(ctx context.Context, event Event) error
}

// Observer is told about every dispatched or resolved alert before channels are.
type Observer interface {
	OnAlert(ctx context.Context, event Event)
}

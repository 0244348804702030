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

package monitoring

import (
	"context"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// Dispatcher is the alert side of the monitor. alerts.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert) bool
	Resolve(ctx context.Context, ruleKey string) bool
	ActiveFor(ruleKey string) *models.Alert
	Counts() map[models.Severity]int
}

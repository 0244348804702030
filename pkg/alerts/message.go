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
	"fmt"
	"strings"

	"github.com/mfreeman451/stackradar/pkg/models"
)

// FormatMessage renders the human-readable alert line, e.g.
// "CRITICAL: memory percent is 90.00% (above critical threshold of 85.00%)".
func FormatMessage(a *models.Alert) string {
	dir := a.Direction
	if dir == "" {
		dir = models.Above
	}

	return fmt.Sprintf("%s: %s %s is %.2f%s (%s %s threshold of %.2f%s)",
		strings.ToUpper(a.Severity.String()),
		a.Kind, a.Metric,
		a.ObservedValue, a.Unit,
		dir, a.Severity,
		a.ThresholdValue, a.Unit)
}

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

// Discord embed colours by alert level.
const (
	DiscordColorRed    = 15158332 // critical, emergency
	DiscordColorYellow = 16776960 // warning
	DiscordColorGreen  = 3066993  // resolved
)

// DiscordTemplate renders a WebhookAlert as a Discord embed. Select it with
// template: discord in the webhook config.
const DiscordTemplate = `{
  "embeds": [{
    "title": {{if .alert.Resolved}}{{json (printf "Resolved: %s.%s" .alert.Resource .alert.Metric)}}{{else}}{{json (printf "%s: %s.%s" .alert.Level .alert.Resource .alert.Metric)}}{{end}},
    "description": {{json .alert.Message}},
    "color": {{if .alert.Resolved}}3066993{{else if eq .alert.Level "warning"}}16776960{{else}}15158332{{end}},
    "timestamp": {{json .alert.Timestamp}},
    "fields": [
      {
        "name": "Value",
        "value": {{json (printf "%.2f" .alert.Value)}},
        "inline": true
      },
      {
        "name": "Threshold",
        "value": {{json (printf "%.2f" .alert.Threshold)}},
        "inline": true
      },
      {
        "name": "Alert ID",
        "value": {{json .alert.AlertID}},
        "inline": false
      }
    ]
  }]
}`

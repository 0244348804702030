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
	"io"
	"log/slog"

	"github.com/mfreeman451/stackradar/pkg/config"
)

// BuildChannels creates the channels enabled in cfg. The stream hub is
// always created and returned separately so the API can serve it.
func BuildChannels(cfg config.AlertsConfig, logger *slog.Logger, console io.Writer) ([]Channel, *StreamChannel, error) {
	var channels []Channel

	if cfg.Log {
		channels = append(channels, NewLogChannel(logger))
	}

	if cfg.File != "" {
		channels = append(channels, NewFileChannel(cfg.File))
	}

	if cfg.Console && console != nil {
		channels = append(channels, NewConsoleChannel(console))
	}

	if cfg.Webhook.Enabled {
		wh, err := NewWebhookChannel(cfg.Webhook, logger)
		if err != nil {
			return nil, nil, err
		}

		channels = append(channels, wh)
	}

	if email := NewEmailChannel(cfg.Email, logger); email.Configured() {
		channels = append(channels, email)
	}

	stream := NewStreamChannel(cfg.StreamQueue, logger)
	channels = append(channels, stream)

	return channels, stream, nil
}

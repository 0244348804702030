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

import "errors"

var (
	errWebhookDisabled    = errors.New("webhook alerter is disabled")
	errWebhookRateLimited = errors.New("webhook rate limit exceeded, alert dropped")
	errInvalidJSON        = errors.New("invalid JSON generated")
	errWebhookStatus      = errors.New("webhook returned non-2xx status")
	errTemplateParse      = errors.New("template parsing failed")
	errTemplateExecution  = errors.New("template execution failed")
	errStreamClosed       = errors.New("alert stream closed")
)

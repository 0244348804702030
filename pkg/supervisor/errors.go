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

package supervisor

import "errors"

var (
	ErrUnknownService = errors.New("unknown service")
	errNoStartCommand = errors.New("service has no start command")
	errStartTimeout   = errors.New("service did not become healthy in time")
	errExitedEarly    = errors.New("service exited before becoming healthy")
	errStillRunning   = errors.New("service did not exit after SIGKILL")
)

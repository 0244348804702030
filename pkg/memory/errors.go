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

package memory

import "errors"

var (
	// ErrModelExists is returned when registering a name already tracked.
	ErrModelExists = errors.New("model already registered")
	// ErrModelNotFound is returned for operations on an unknown model.
	ErrModelNotFound = errors.New("model not registered")

	errUnknownService = errors.New("no base url for service")
	errServiceStatus  = errors.New("service returned non-2xx status")
	errInvalidEntry   = errors.New("model entry requires a name and non-negative size")
	errNoProbe        = errors.New("no memory probe configured")
)

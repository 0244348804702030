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

package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	errRuleMetric     = errors.New("rule requires kind and metric")
	errRuleDirection  = errors.New("rule direction must be above or below")
	errRuleLevelOrder = errors.New("rule levels are not ordered by severity")
)

// ThresholdRule is a static (kind, metric) rule with up to three severity levels.
type ThresholdRule struct {
	Kind         ResourceKind  `json:"resource" yaml:"resource"`
	Metric       string        `json:"metric" yaml:"metric"`
	Direction    Direction     `json:"direction" yaml:"direction"`
	Warning      float64       `json:"warning" yaml:"warning"`
	Critical     float64       `json:"critical" yaml:"critical"`
	Emergency    *float64      `json:"emergency,omitempty" yaml:"emergency,omitempty"`
	Duration     time.Duration `json:"-" yaml:"-"`
	PollInterval time.Duration `json:"-" yaml:"-"`
}

// Key returns the rule key, identical to the metric key it watches.
func (r *ThresholdRule) Key() string {
	return MetricKey(r.Kind, r.Metric)
}

// Level returns the threshold for sev and whether the rule defines one.
func (r *ThresholdRule) Level(sev Severity) (float64, bool) {
	switch sev {
	case SeverityWarning:
		return r.Warning, true
	case SeverityCritical:
		return r.Critical, true
	case SeverityEmergency:
		if r.Emergency == nil {
			return 0, false
		}

		return *r.Emergency, true
	case SeverityNone:
		return 0, false
	default:
		return 0, false
	}
}

// Violates reports whether value is at or beyond level in the rule's direction.
func (r *ThresholdRule) Violates(value, level float64) bool {
	if r.Direction == Below {
		return value <= level
	}

	return value >= level
}

// moreSevere reports whether b is strictly worse than a in the rule's direction.
func (r *ThresholdRule) moreSevere(a, b float64) bool {
	if r.Direction == Below {
		return b < a
	}

	return b > a
}

// Validate checks that warning is the mildest level and emergency the harshest.
func (r *ThresholdRule) Validate() error {
	if r.Kind == "" || r.Metric == "" {
		return errRuleMetric
	}

	if r.Direction == "" {
		r.Direction = Above
	}

	if r.Direction != Above && r.Direction != Below {
		return fmt.Errorf("%w: %s", errRuleDirection, r.Key())
	}

	if !r.moreSevere(r.Warning, r.Critical) {
		return fmt.Errorf("%w: %s critical %v vs warning %v", errRuleLevelOrder, r.Key(), r.Critical, r.Warning)
	}

	if r.Emergency != nil && !r.moreSevere(r.Critical, *r.Emergency) {
		return fmt.Errorf("%w: %s emergency %v vs critical %v", errRuleLevelOrder, r.Key(), *r.Emergency, r.Critical)
	}

	return nil
}

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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity orders alert tiers. The zero value means "not violated".
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

var errUnknownSeverity = fmt.Errorf("unknown severity")

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	case SeverityNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseSeverity is the inverse of String.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	case "emergency":
		return SeverityEmergency, nil
	case "none", "":
		return SeverityNone, nil
	default:
		return SeverityNone, fmt.Errorf("%w: %q", errUnknownSeverity, s)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	v, err := ParseSeverity(str)
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// Direction says which side of a threshold is bad.
type Direction string

const (
	// Above means higher values are worse (usage percent).
	Above Direction = "above"
	// Below means lower values are worse (free memory, free disk).
	Below Direction = "below"
)

// Alert is a raised (and possibly resolved) threshold violation.
type Alert struct {
	ID             string       `json:"id"`
	RuleKey        string       `json:"rule_key"`
	Kind           ResourceKind `json:"resource"`
	Metric         string       `json:"metric"`
	Severity       Severity     `json:"severity"`
	ObservedValue  float64      `json:"observed_value"`
	ThresholdValue float64      `json:"threshold_value"`
	Direction      Direction    `json:"direction"`
	Unit           string       `json:"unit,omitempty"`
	Message        string       `json:"message"`
	CreatedAt      time.Time    `json:"created_at"`
	Resolved       bool         `json:"resolved"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// AlertID builds the id of an alert raised for ruleKey at t.
func AlertID(ruleKey string, t time.Time) string {
	return fmt.Sprintf("%s_%d", ruleKey, t.Unix())
}

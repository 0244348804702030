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
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/mfreeman451/stackradar/pkg/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends plain-text alert mail. Without a host or recipients it
// does nothing.
type EmailChannel struct {
	config   config.EmailConfig
	logger   *slog.Logger
	sendMail sendMailFunc
}

// NewEmailChannel creates an EmailChannel.
func NewEmailChannel(cfg config.EmailConfig, logger *slog.Logger) *EmailChannel {
	return &EmailChannel{
		config:   cfg,
		logger:   logger.With("component", "alerts", "channel", "email"),
		sendMail: smtp.SendMail,
	}
}

func (*EmailChannel) Name() string { return "email" }

// Configured reports whether the channel can send anything.
func (c *EmailChannel) Configured() bool {
	return c.config.Host != "" && len(c.config.To) > 0
}

func (c *EmailChannel) Notify(ctx context.Context, ev Event) error {
	if !c.Configured() {
		c.logger.DebugContext(ctx, "Email channel not configured, skipping", "alert_id", ev.Alert.ID)

		return nil
	}

	port := c.config.Port
	if port == 0 {
		port = 587
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	from := c.config.From
	if from == "" {
		from = c.config.Username
	}

	if err := c.sendMail(addr, auth, from, c.config.To, c.message(from, ev)); err != nil {
		return fmt.Errorf("failed to send alert mail via %s: %w", addr, err)
	}

	return nil
}

func (c *EmailChannel) message(from string, ev Event) []byte {
	a := &ev.Alert

	subject := fmt.Sprintf("[stackradar] %s %s", strings.ToUpper(a.Severity.String()), a.RuleKey)
	if ev.Type == EventResolved {
		subject = "[stackradar] RESOLVED " + a.RuleKey
	}

	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.config.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\nAlert ID: %s\r\nRaised: %s\r\n",
		a.Message, a.ID, a.CreatedAt.Format(time.RFC3339))

	if a.ResolvedAt != nil {
		fmt.Fprintf(&b, "Resolved: %s\r\n", a.ResolvedAt.Format(time.RFC3339))
	}

	return []byte(b.String())
}

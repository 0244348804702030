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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultStreamQueue = 64
	streamWriteWait    = 5 * time.Second
)

// StreamChannel fans events out to websocket clients. Each client has a
// bounded queue; when a slow client's queue is full the oldest event is
// dropped so Notify never blocks.
type StreamChannel struct {
	queueSize int
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn    *websocket.Conn
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	dropped int
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewStreamChannel creates an empty hub.
func NewStreamChannel(queueSize int, logger *slog.Logger) *StreamChannel {
	if queueSize <= 0 {
		queueSize = defaultStreamQueue
	}

	return &StreamChannel{
		queueSize: queueSize,
		logger:    logger.With("component", "alerts", "channel", "stream"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (*StreamChannel) Name() string { return "stream" }

// Notify queues ev for every connected client.
func (s *StreamChannel) Notify(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}

	for c := range s.clients {
		select {
		case c.queue <- ev:
			continue
		default:
		}

		select {
		case <-c.queue:
			c.dropped++
		default:
		}

		select {
		case c.queue <- ev:
		default:
		}
	}

	return nil
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (s *StreamChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade alert stream", "error", err)

		return
	}

	c := &streamClient{
		conn:  conn,
		queue: make(chan Event, s.queueSize),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.close()

		return
	}

	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("Alert stream client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)

	// Reads only detect disconnects; clients send nothing meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.remove(c)
	s.logger.Info("Alert stream client disconnected", "remote", r.RemoteAddr)
}

func (s *StreamChannel) writeLoop(c *streamClient) {
	defer s.remove(c)

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))

			if err := c.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("alert stream write failed", "error", err)

				return
			}
		}
	}
}

func (s *StreamChannel) remove(c *streamClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	dropped := c.dropped
	s.mu.Unlock()

	c.close()

	if ok && dropped > 0 {
		s.logger.Warn("Alert stream client dropped events", "dropped", dropped)
	}
}

// Clients returns the number of connected clients.
func (s *StreamChannel) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Close disconnects every client and rejects further events.
func (s *StreamChannel) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*streamClient, 0, len(s.clients))

	for c := range s.clients {
		clients = append(clients, c)
	}

	s.clients = make(map[*streamClient]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

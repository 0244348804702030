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

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/mfreeman451/stackradar/pkg/checker"
	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeProcess struct {
	pid        int
	ignoreTerm bool
	events     *eventLog

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
	done    chan struct{}
	once    sync.Once
	exited  atomic.Bool
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(s string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, s)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) exit() {
	p.once.Do(func() {
		p.exited.Store(true)
		close(p.done)
	})
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	p.events.add("term")

	if !p.ignoreTerm {
		p.exit()
	}

	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.events.add("kill")
	p.exit()

	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Exited() bool { return p.exited.Load() }

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.killed
}

// healthAfter reports healthy from the nth check on.
type healthAfter struct {
	n     int32
	calls atomic.Int32
}

func (h *healthAfter) Check(context.Context) (bool, string) {
	if h.calls.Add(1) >= h.n {
		return true, "ok"
	}

	return false, "starting"
}

func registryWith(c checker.Checker) checker.Registry {
	r := checker.NewRegistry()
	r.Register(models.HealthPort, func(context.Context, models.ServiceDescriptor) (checker.Checker, error) {
		return c, nil
	})

	return r
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

func listening(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l.Addr().(*net.TCPAddr).Port
}

func testConfig() config.SupervisorConfig {
	return config.SupervisorConfig{
		HealthInterval: config.Duration(time.Millisecond),
		StartTimeout:   config.Duration(time.Second),
		StopGrace:      config.Duration(20 * time.Millisecond),
		ProbeTimeout:   config.Duration(200 * time.Millisecond),
	}
}

func service(name string, port, order int) models.ServiceDescriptor {
	return models.ServiceDescriptor{
		Name:         name,
		Host:         "127.0.0.1",
		Port:         port,
		Order:        order,
		HealthCheck:  models.HealthCheck{Type: models.HealthPort},
		StartCommand: []string{name, "serve"},
	}
}

func newTestSupervisor(ctrl ProcessController, reg checker.Registry, services ...models.ServiceDescriptor) *Supervisor {
	s := NewSupervisor(testConfig(), services, ctrl, reg, quietLogger())
	s.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return s
}

func TestStartAlreadyListeningDoesNotSpawn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pc := NewMockProcessController(ctrl)
	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}), service("ollama", listening(t), 0))

	require.NoError(t, s.Start(context.Background(), "ollama"))

	st := s.Status(context.Background())
	require.Len(t, st, 1)
	assert.True(t, st[0].Running)
	assert.False(t, st[0].Managed)
}

func TestStartWaitsForHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc := newFakeProcess(4242)
	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(proc, nil)

	health := &healthAfter{n: 3}
	s := newTestSupervisor(pc, registryWith(health), service("comfyui", freePort(t), 1))

	require.NoError(t, s.Start(context.Background(), "comfyui"))
	assert.Equal(t, int32(3), health.calls.Load())

	st := s.Status(context.Background())
	require.Len(t, st, 1)
	assert.True(t, st[0].Managed)
	assert.Equal(t, 4242, st[0].PID)

	// a second start is a no-op while the process lives
	require.NoError(t, s.Start(context.Background(), "comfyui"))
}

func TestStartTimeoutKillsProcess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc := newFakeProcess(7)
	proc.ignoreTerm = true

	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(proc, nil)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1 << 20}), service("webui", freePort(t), 2))
	s.config.StartTimeout = 0

	err := s.Start(context.Background(), "webui")
	require.Error(t, err)
	require.ErrorIs(t, err, errStartTimeout)
	assert.True(t, proc.wasKilled())

	st := s.Status(context.Background())
	assert.False(t, st[0].Managed)
}

func TestStartProcessExitsEarly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc := newFakeProcess(8)
	proc.exit()

	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(proc, nil)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1 << 20}), service("webui", freePort(t), 2))

	err := s.Start(context.Background(), "webui")
	require.ErrorIs(t, err, errExitedEarly)
}

func TestStartAllAbortsOnFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	boom := errors.New("exec: not found")

	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d models.ServiceDescriptor) (Process, error) {
			assert.Equal(t, "comfyui", d.Name)

			return nil, boom
		})

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}),
		service("webui", freePort(t), 2),
		service("comfyui", freePort(t), 1),
		service("ollama", listening(t), 0),
	)

	err := s.StartAll(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestStartUnknownService(t *testing.T) {
	s := newTestSupervisor(nil, checker.NewRegistry())

	require.ErrorIs(t, s.Start(context.Background(), "nope"), ErrUnknownService)
	require.ErrorIs(t, s.Stop(context.Background(), "nope"), ErrUnknownService)
}

func TestStopEscalatesToKill(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := &eventLog{}
	proc := newFakeProcess(11)
	proc.ignoreTerm = true
	proc.events = events

	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(proc, nil)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}), service("ollama", freePort(t), 0))
	require.NoError(t, s.Start(context.Background(), "ollama"))

	require.NoError(t, s.Stop(context.Background(), "ollama"))
	assert.Equal(t, []string{"term", "kill"}, events.list())
	assert.Equal(t, []os.Signal{syscall.SIGTERM}, proc.signals)

	// untracked, so stopping again does nothing
	require.NoError(t, s.Stop(context.Background(), "ollama"))
	assert.Len(t, events.list(), 2)
}

func TestStopAllReverseOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := &eventLog{}
	procs := map[string]*fakeProcess{}

	pc := NewMockProcessController(ctrl)
	pc.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d models.ServiceDescriptor) (Process, error) {
			p := newFakeProcess(d.Order + 100)
			p.events = &eventLog{}
			procs[d.Name] = p

			return &namedProcess{fakeProcess: p, name: d.Name, log: events}, nil
		}).Times(3)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}),
		service("ollama", freePort(t), 0),
		service("comfyui", freePort(t), 1),
		service("webui", freePort(t), 2),
	)

	require.NoError(t, s.StartAll(context.Background()))
	require.NoError(t, s.StopAll(context.Background()))

	assert.Equal(t, []string{"webui", "comfyui", "ollama"}, events.list())

	for name, p := range procs {
		assert.True(t, p.Exited(), name)
	}
}

type namedProcess struct {
	*fakeProcess
	name string
	log  *eventLog
}

func (p *namedProcess) Signal(sig os.Signal) error {
	p.log.add(p.name)

	return p.fakeProcess.Signal(sig)
}

func TestRestart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first, second := newFakeProcess(1), newFakeProcess(2)

	pc := NewMockProcessController(ctrl)
	gomock.InOrder(
		pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(first, nil),
		pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(second, nil),
	)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}), service("ollama", freePort(t), 0))

	require.NoError(t, s.Start(context.Background(), "ollama"))
	require.NoError(t, s.Restart(context.Background(), "ollama"))

	assert.True(t, first.Exited())
	assert.False(t, second.Exited())
	assert.Equal(t, 2, s.Status(context.Background())[0].PID)
}

func TestTerminateAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	polite, stubborn := newFakeProcess(1), newFakeProcess(2)
	stubborn.ignoreTerm = true

	pc := NewMockProcessController(ctrl)
	gomock.InOrder(
		pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(polite, nil),
		pc.EXPECT().Start(gomock.Any(), gomock.Any()).Return(stubborn, nil),
	)

	s := newTestSupervisor(pc, registryWith(&healthAfter{n: 1}),
		service("ollama", freePort(t), 0),
		service("comfyui", freePort(t), 1),
	)
	require.NoError(t, s.StartAll(context.Background()))

	s.TerminateAll(10 * time.Millisecond)

	assert.True(t, polite.Exited())
	assert.False(t, polite.wasKilled())
	assert.True(t, stubborn.wasKilled())

	for _, st := range s.Status(context.Background()) {
		assert.False(t, st.Managed, st.Name)
	}
}

func TestShutdownTasksStopUIFirst(t *testing.T) {
	s := newTestSupervisor(nil, checker.NewRegistry(),
		service("webui", 8080, 2),
		service("ollama", 11434, 0),
		service("comfyui", 8188, 1),
	)

	tasks := s.ShutdownTasks()
	require.Len(t, tasks, 3)

	byName := map[string]int{}
	for _, task := range tasks {
		byName[task.Name] = task.Priority
		assert.NotNil(t, task.Run)
		assert.Less(t, task.Priority, 80)
		assert.Positive(t, task.Priority)
	}

	assert.Greater(t, byName["stop-webui"], byName["stop-comfyui"])
	assert.Greater(t, byName["stop-comfyui"], byName["stop-ollama"])
}

type upRecorder struct {
	mu sync.Mutex
	up map[string]bool
}

func (r *upRecorder) SetServiceUp(name string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.up[name] = up
}

func TestStatusRecordsLiveness(t *testing.T) {
	rec := &upRecorder{up: map[string]bool{}}
	s := NewSupervisor(testConfig(), []models.ServiceDescriptor{
		service("ollama", listening(t), 0),
		service("comfyui", freePort(t), 1),
	}, nil, checker.NewRegistry(), quietLogger(), WithRecorder(rec))

	st := s.Status(context.Background())
	require.Len(t, st, 2)
	assert.Equal(t, "ollama", st[0].Name)
	assert.True(t, st[0].Running)
	assert.False(t, st[1].Running)
	assert.Equal(t, map[string]bool{"ollama": true, "comfyui": false}, rec.up)
}

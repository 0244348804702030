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

package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mfreeman451/stackradar/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, int, error) {
	t.Helper()

	r := newRootCmd()

	var out bytes.Buffer
	r.cmd.SetOut(&out)
	r.cmd.SetErr(&out)
	r.cmd.SetArgs(args)

	code, err := r.execute()

	return out.String(), code, err
}

func TestConfigCommandRoundTrips(t *testing.T) {
	out, code, err := execute(t, "config")
	require.NoError(t, err)
	assert.Zero(t, code)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Len(t, cfg.Services, 3)
	assert.Equal(t, config.DefaultCheckInterval, cfg.Monitor.CheckInterval.Std())
	assert.Contains(t, out, "check_interval: 5s")
}

func TestStatusFallsBackToPortProbes(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = l.Close() }()

	port := l.Addr().(*net.TCPAddr).Port
	dir := t.TempDir()
	path := filepath.Join(dir, "stackradar.yaml")

	body := "services:\n" +
		"  - name: ollama\n" +
		"    host: 127.0.0.1\n" +
		"    port: " + strconv.Itoa(port) + "\n" +
		"shutdown:\n" +
		"  stats_file: " + filepath.Join(dir, "stats.json") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, code, err := execute(t, "status", "--config", path, "--api", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Contains(t, out, "probing services directly")
	assert.Contains(t, out, "ollama")
	assert.Contains(t, out, "true")
}

func TestServicesRequiresName(t *testing.T) {
	_, code, err := execute(t, "services", "start")
	require.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestBadConfigPath(t *testing.T) {
	_, code, err := execute(t, "status", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, 1, code)
}

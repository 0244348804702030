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

package collector

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mfreeman451/stackradar/pkg/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerGB = 1024 * 1024 * 1024

const bytesPerMB = 1024 * 1024

type sampleFunc func(ctx context.Context) (float64, string, models.Metadata, error)

// SystemSource samples the local host through gopsutil. GPU metrics come from
// nvidia-smi and report ErrUnavailable when the tool is missing.
type SystemSource struct {
	diskPath string
	gpu      *GPUSampler
	now      func() time.Time
	table    map[string]sampleFunc

	netMu   sync.Mutex
	netPrev map[string]netCounter
}

type netCounter struct {
	bytes uint64
	at    time.Time
}

// Option configures a SystemSource.
type Option func(*SystemSource)

// WithDiskPath selects the filesystem sampled by disk metrics.
func WithDiskPath(path string) Option {
	return func(s *SystemSource) { s.diskPath = path }
}

// WithGPUSampler replaces the default nvidia-smi sampler.
func WithGPUSampler(g *GPUSampler) Option {
	return func(s *SystemSource) { s.gpu = g }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SystemSource) { s.now = now }
}

// NewSystemSource creates a host sampler.
func NewSystemSource(opts ...Option) *SystemSource {
	s := &SystemSource{
		diskPath: "/",
		gpu:      NewGPUSampler(ExecRunner{}),
		now:      time.Now,
		netPrev:  make(map[string]netCounter),
	}

	for _, o := range opts {
		o(s)
	}

	s.table = map[string]sampleFunc{
		"cpu.percent":                s.cpuPercent,
		"cpu.count":                  s.cpuCount,
		"cpu.load1":                  s.load1,
		"memory.percent":             s.memPercent,
		"memory.used_gb":             s.memUsedGB,
		"memory.available_gb":        s.memAvailableGB,
		"memory.swap_percent":        s.swapPercent,
		"disk.percent":               s.diskPercent,
		"disk.free_gb":               s.diskFreeGB,
		"network.bytes_sent_per_sec": s.netSentRate,
		"network.bytes_recv_per_sec": s.netRecvRate,
		"temperature.max_celsius":    s.tempMax,
		"process.count":              s.procCount,
		"process.self_rss_mb":        s.selfRSS,
		"gpu.utilization":            s.gpuField(gpuUtilization),
		"gpu.memory_used_mb":         s.gpuField(gpuMemoryUsed),
		"gpu.memory_percent":         s.gpuField(gpuMemoryPercent),
		"gpu.temperature":            s.gpuField(gpuTemperature),
	}

	return s
}

// Sample implements Source.
func (s *SystemSource) Sample(ctx context.Context, kind models.ResourceKind, metric string) (models.ResourceSample, error) {
	key := models.MetricKey(kind, metric)

	fn, ok := s.table[key]
	if !ok {
		return models.ResourceSample{}, fmt.Errorf("%w: %s", errUnknownMetric, key)
	}

	value, unit, md, err := fn(ctx)
	if err != nil {
		return models.ResourceSample{}, fmt.Errorf("sample %s: %w", key, err)
	}

	return models.ResourceSample{
		Kind:      kind,
		Metric:    metric,
		Value:     value,
		Unit:      unit,
		Timestamp: s.now(),
		Metadata:  md,
	}, nil
}

// Supported lists the metric keys this source can sample.
func (s *SystemSource) Supported() []string {
	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}

	return keys
}

func (*SystemSource) cpuPercent(ctx context.Context) (float64, string, models.Metadata, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, "", nil, err
	}

	if len(pct) == 0 {
		return 0, "", nil, errNoSamples
	}

	return pct[0], "%", nil, nil
}

func (*SystemSource) cpuCount(ctx context.Context) (float64, string, models.Metadata, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(n), "cores", nil, nil
}

func (*SystemSource) load1(ctx context.Context) (float64, string, models.Metadata, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	md := models.Metadata{
		{Key: "load5", Value: fmt.Sprintf("%.2f", avg.Load5)},
		{Key: "load15", Value: fmt.Sprintf("%.2f", avg.Load15)},
	}

	return avg.Load1, "", md, nil
}

func (*SystemSource) memPercent(ctx context.Context) (float64, string, models.Metadata, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	md := models.Metadata{{Key: "total_gb", Value: fmt.Sprintf("%.2f", float64(vm.Total)/bytesPerGB)}}

	return vm.UsedPercent, "%", md, nil
}

func (*SystemSource) memUsedGB(ctx context.Context) (float64, string, models.Metadata, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(vm.Used) / bytesPerGB, "GB", nil, nil
}

func (*SystemSource) memAvailableGB(ctx context.Context) (float64, string, models.Metadata, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(vm.Available) / bytesPerGB, "GB", nil, nil
}

func (*SystemSource) swapPercent(ctx context.Context) (float64, string, models.Metadata, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	return sw.UsedPercent, "%", nil, nil
}

func (s *SystemSource) diskPercent(ctx context.Context) (float64, string, models.Metadata, error) {
	u, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return 0, "", nil, err
	}

	return u.UsedPercent, "%", models.Metadata{{Key: "path", Value: u.Path}}, nil
}

func (s *SystemSource) diskFreeGB(ctx context.Context) (float64, string, models.Metadata, error) {
	u, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(u.Free) / bytesPerGB, "GB", models.Metadata{{Key: "path", Value: u.Path}}, nil
}

// netRate returns the byte rate of one direction since the previous call for
// that direction. The first call only primes the counter and reports zero.
func (s *SystemSource) netRate(ctx context.Context, sent bool) (float64, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, err
	}

	if len(counters) == 0 {
		return 0, errNoSamples
	}

	dir, total := "recv", counters[0].BytesRecv
	if sent {
		dir, total = "sent", counters[0].BytesSent
	}

	cur := netCounter{bytes: total, at: s.now()}

	s.netMu.Lock()
	defer s.netMu.Unlock()

	prev, ok := s.netPrev[dir]
	s.netPrev[dir] = cur

	if !ok {
		return 0, nil
	}

	elapsed := cur.at.Sub(prev.at).Seconds()
	if elapsed <= 0 || cur.bytes < prev.bytes {
		return 0, nil
	}

	return float64(cur.bytes-prev.bytes) / elapsed, nil
}

func (s *SystemSource) netSentRate(ctx context.Context) (float64, string, models.Metadata, error) {
	rate, err := s.netRate(ctx, true)

	return rate, "B/s", nil, err
}

func (s *SystemSource) netRecvRate(ctx context.Context) (float64, string, models.Metadata, error) {
	rate, err := s.netRate(ctx, false)

	return rate, "B/s", nil, err
}

func (*SystemSource) tempMax(ctx context.Context) (float64, string, models.Metadata, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err != nil {
			return 0, "", nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		return 0, "", nil, ErrUnavailable
	}

	// gopsutil returns partial readings alongside a warning error; keep them.
	best := temps[0]
	for _, t := range temps[1:] {
		if t.Temperature > best.Temperature {
			best = t
		}
	}

	return best.Temperature, "°C", models.Metadata{{Key: "sensor", Value: best.SensorKey}}, nil
}

func (*SystemSource) procCount(ctx context.Context) (float64, string, models.Metadata, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(len(pids)), "", nil, nil
}

func (*SystemSource) selfRSS(ctx context.Context) (float64, string, models.Metadata, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err != nil {
		return 0, "", nil, err
	}

	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, "", nil, err
	}

	return float64(info.RSS) / bytesPerMB, "MB", nil, nil
}

func (s *SystemSource) gpuField(field gpuField) sampleFunc {
	return func(ctx context.Context) (float64, string, models.Metadata, error) {
		stats, err := s.gpu.Read(ctx)
		if err != nil {
			return 0, "", nil, err
		}

		md := models.Metadata{{Key: "gpu", Value: stats.Name}}

		switch field {
		case gpuUtilization:
			return stats.Utilization, "%", md, nil
		case gpuMemoryUsed:
			return stats.MemoryUsedMB, "MB", md, nil
		case gpuMemoryPercent:
			if stats.MemoryTotalMB <= 0 {
				return 0, "", nil, ErrUnavailable
			}

			return stats.MemoryUsedMB / stats.MemoryTotalMB * 100, "%", md, nil
		case gpuTemperature:
			return stats.Temperature, "°C", md, nil
		}

		return 0, "", nil, errUnknownMetric
	}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, name)
	}

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}

	return out, nil
}

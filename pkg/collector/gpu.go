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
	"strconv"
	"strings"
	"sync"
	"time"
)

type gpuField int

const (
	gpuUtilization gpuField = iota
	gpuMemoryUsed
	gpuMemoryPercent
	gpuTemperature
)

const gpuQuery = "--query-gpu=name,utilization.gpu,memory.used,memory.total,temperature.gpu"

// GPUStats is one nvidia-smi reading of the first GPU.
type GPUStats struct {
	Name          string
	Utilization   float64
	MemoryUsedMB  float64
	MemoryTotalMB float64
	Temperature   float64
}

// GPUSampler reads GPU counters through nvidia-smi. A single reading is reused
// for maxAge so the four gpu metrics of one cycle cost one exec.
type GPUSampler struct {
	runner CommandRunner
	maxAge time.Duration
	now    func() time.Time

	mu     sync.Mutex
	last   *GPUStats
	lastAt time.Time
}

// NewGPUSampler creates a sampler backed by runner.
func NewGPUSampler(runner CommandRunner) *GPUSampler {
	return &GPUSampler{
		runner: runner,
		maxAge: time.Second,
		now:    time.Now,
	}
}

// Read returns current GPU stats, or an error wrapping ErrUnavailable when no
// GPU can be queried.
func (g *GPUSampler) Read(ctx context.Context) (*GPUStats, error) {
	g.mu.Lock()
	if g.last != nil && g.now().Sub(g.lastAt) < g.maxAge {
		stats := *g.last
		g.mu.Unlock()

		return &stats, nil
	}
	g.mu.Unlock()

	out, err := g.runner.Run(ctx, "nvidia-smi", gpuQuery, "--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	stats, err := parseGPUStats(string(out))
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.last = stats
	g.lastAt = g.now()
	g.mu.Unlock()

	cp := *stats

	return &cp, nil
}

func parseGPUStats(out string) (*GPUStats, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return nil, ErrUnavailable
	}

	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q", errParseGPUOutput, line)
	}

	nums := make([]float64, 4)

	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			// "[N/A]" on GPUs without the counter.
			return nil, fmt.Errorf("%w: field %d %q", errParseGPUOutput, i+1, f)
		}

		nums[i] = v
	}

	return &GPUStats{
		Name:          strings.TrimSpace(fields[0]),
		Utilization:   nums[0],
		MemoryUsedMB:  nums[1],
		MemoryTotalMB: nums[2],
		Temperature:   nums[3],
	}, nil
}

// Package parallel runs independent jobs on a bounded number of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent jobs.
	// Default: min(runtime.NumCPU(), 8)
	MaxWorkers int

	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{MaxWorkers: workers}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a new config with the specified timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// Result holds the outcome of one job.
type Result[T any, R any] struct {
	Input    T
	Value    R
	Err      error
	Duration time.Duration
}

// Stats summarizes a run.
type Stats struct {
	Jobs     int
	Failed   int
	Wall     time.Duration
	Slowest  time.Duration
	TotalCPU time.Duration // sum of job durations
}

// WorkerPool runs a function over many inputs with bounded concurrency.
// A failing job does not cancel the others.
type WorkerPool[T any, R any] struct {
	config PoolConfig

	mu    sync.Mutex
	stats Stats
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	return &WorkerPool[T, R]{config: config}
}

// Run calls fn for every input and returns the results in input order.
// Jobs not started before ctx is done report ctx.Err().
func (p *WorkerPool[T, R]) Run(ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) []Result[T, R] {
	if len(inputs) == 0 {
		return nil
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	results := make([]Result[T, R], len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(p.config.MaxWorkers)
	for i, input := range inputs {
		results[i].Input = input
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			jobStart := time.Now()
			results[i].Value, results[i].Err = fn(ctx, input)
			results[i].Duration = time.Since(jobStart)
			return nil
		})
	}
	_ = g.Wait()

	p.record(results, time.Since(start))
	return results
}

func (p *WorkerPool[T, R]) record(results []Result[T, R], wall time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Wall += wall
	for _, r := range results {
		p.stats.Jobs++
		if r.Err != nil {
			p.stats.Failed++
		}
		p.stats.TotalCPU += r.Duration
		if r.Duration > p.stats.Slowest {
			p.stats.Slowest = r.Duration
		}
	}
}

// Stats returns the accumulated statistics of all runs.
func (p *WorkerPool[T, R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// FirstError returns the first failed job's error in input order.
func FirstError[T any, R any](results []Result[T, R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

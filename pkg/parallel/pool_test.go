package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Run(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())

	inputs := []int{1, 2, 3, 4, 5}
	results := pool.Run(context.Background(), inputs, func(ctx context.Context, input int) (int, error) {
		return input * 2, nil
	})

	if len(results) != len(inputs) {
		t.Fatalf("Expected %d results, got %d", len(inputs), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for input %d: %v", inputs[i], r.Err)
		}
		if r.Input != inputs[i] || r.Value != inputs[i]*2 {
			t.Errorf("result %d: got input %d value %d", i, r.Input, r.Value)
		}
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())
	if results := pool.Run(context.Background(), nil, nil); results != nil {
		t.Errorf("Expected nil results, got %v", results)
	}
}

func TestWorkerPool_FailureDoesNotCancelOthers(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig().WithWorkers(2))
	boom := errors.New("boom")

	results := pool.Run(context.Background(), []int{1, 2, 3}, func(ctx context.Context, input int) (int, error) {
		if input == 1 {
			return 0, boom
		}
		return input, nil
	})

	if !errors.Is(results[0].Err, boom) {
		t.Errorf("Expected boom, got %v", results[0].Err)
	}
	if results[1].Err != nil || results[2].Err != nil {
		t.Errorf("Unexpected errors: %v, %v", results[1].Err, results[2].Err)
	}
	if !errors.Is(FirstError(results), boom) {
		t.Errorf("FirstError = %v", FirstError(results))
	}

	stats := pool.Stats()
	if stats.Jobs != 3 || stats.Failed != 1 {
		t.Errorf("Expected 3 jobs and 1 failure, got %+v", stats)
	}
}

func TestWorkerPool_Concurrency(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig().WithWorkers(3))

	var running, peak int32
	inputs := make([]int, 12)
	pool.Run(context.Background(), inputs, func(ctx context.Context, input int) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return input, nil
	})

	if peak > 3 {
		t.Errorf("Expected at most 3 concurrent jobs, got %d", peak)
	}
}

func TestWorkerPool_CancelledContext(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := pool.Run(ctx, []int{1, 2}, func(ctx context.Context, input int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return input, nil
	})

	if calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", r.Err)
		}
	}
}

func TestWorkerPool_Timeout(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig().WithWorkers(1).WithTimeout(20 * time.Millisecond))

	results := pool.Run(context.Background(), []int{1, 2, 3}, func(ctx context.Context, input int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return input, nil
		}
	})

	for _, r := range results {
		if !errors.Is(r.Err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", r.Err)
		}
	}
}

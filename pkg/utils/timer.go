package utils

import (
	"sync"
	"time"
)

// Phase is one timed step of a pipeline.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Timer records the durations of sequential phases, in start order.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  []Phase
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger logs each finished phase at debug level.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithEnabled sets whether the timer records anything.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock for testability.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// TimeFuncWithError runs fn as the named phase and records its duration
// and error.
func (t *Timer) TimeFuncWithError(phaseName string, fn func() error) (time.Duration, error) {
	if !t.enabled {
		return 0, fn()
	}

	begin := t.clock.Now()
	err := fn()
	phase := Phase{Name: phaseName, Duration: t.clock.Since(begin)}
	if err != nil {
		phase.Err = err.Error()
	}

	t.mu.Lock()
	t.phases = append(t.phases, phase)
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("%s: %s took %v", t.name, phaseName, phase.Duration)
	}
	return phase.Duration, err
}

// Phases returns a copy of the recorded phases.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Phase(nil), t.phases...)
}

// GetDuration returns the duration of the first phase with the given name.
func (t *Timer) GetDuration(phaseName string) time.Duration {
	for _, p := range t.Phases() {
		if p.Name == phaseName {
			return p.Duration
		}
	}
	return 0
}

// TotalDuration returns the time elapsed since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.start)
}

// PrintSummary logs every phase and the total at info level.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.logger == nil {
		return
	}
	t.logger.Info("=== %s Timing Summary ===", t.name)
	for i, p := range t.Phases() {
		t.logger.Info("Phase %d - %s: %v", i+1, p.Name, p.Duration)
	}
	t.logger.Info("Total: %v", t.TotalDuration())
}

package occupancy

import (
	"fmt"
	"time"

	"langarhall/internal/provisioning"
)

// ErrInvalidInput is returned for negative raw counts.
var ErrInvalidInput = provisioning.ErrInvalidInput

const (
	DefaultSamplingInterval = 5 * time.Second
	DefaultWindowSize       = 3
	DefaultHallCapacity     = 5
)

// Config is fixed for the lifetime of a Tracker.
type Config struct {
	SamplingInterval time.Duration
	WindowSize       int
	HallCapacity     int
}

// DefaultConfig returns the settings used by the hall dashboard.
func DefaultConfig() Config {
	return Config{
		SamplingInterval: DefaultSamplingInterval,
		WindowSize:       DefaultWindowSize,
		HallCapacity:     DefaultHallCapacity,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("sampling interval must be positive, got %s", c.SamplingInterval)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.WindowSize)
	}
	if c.HallCapacity < 0 {
		return fmt.Errorf("hall capacity must not be negative, got %d", c.HallCapacity)
	}
	return nil
}

// Snapshot is the smoothed occupancy at one commit.
type Snapshot struct {
	Occupancy        int
	Timestamp        time.Time
	CapacityExceeded bool
	HallCapacity     int
	Window           []int
	Resources        provisioning.Table
}

func (s Snapshot) clone() Snapshot {
	s.Window = cloneInts(s.Window)
	return s
}

func cloneInts(v []int) []int {
	out := make([]int, len(v))
	copy(out, v)
	return out
}

// Tracker turns a noisy per-frame person count into a debounced occupancy.
// It is not safe for concurrent use.
type Tracker struct {
	cfg Config

	window     []int
	lastSample time.Time
	sampled    bool

	current  Snapshot
	hasValue bool
}

// New creates a tracker with an empty window.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	return &Tracker{
		cfg:    cfg,
		window: make([]int, 0, cfg.WindowSize),
	}, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Observe feeds one raw count. The returned bool is true when the sampling
// interval had elapsed and a new snapshot was committed; counts arriving
// before that are discarded.
func (t *Tracker) Observe(raw int, now time.Time) (Snapshot, bool, error) {
	if raw < 0 {
		return Snapshot{}, false, fmt.Errorf("raw count %d: %w", raw, ErrInvalidInput)
	}
	if t.sampled && now.Sub(t.lastSample) < t.cfg.SamplingInterval {
		return Snapshot{}, false, nil
	}

	if len(t.window) == t.cfg.WindowSize {
		copy(t.window, t.window[1:])
		t.window = t.window[:len(t.window)-1]
	}
	t.window = append(t.window, raw)
	t.lastSample = now
	t.sampled = true

	sum := 0
	for _, v := range t.window {
		sum += v
	}
	// counts are non-negative, so integer division is the floor
	occupancy := sum / len(t.window)

	table, err := provisioning.Compute(occupancy)
	if err != nil {
		// unreachable with non-negative window contents
		return Snapshot{}, false, fmt.Errorf("provisioning failed: %w", err)
	}

	t.current = Snapshot{
		Occupancy:        occupancy,
		Timestamp:        now,
		CapacityExceeded: occupancy > t.cfg.HallCapacity,
		HallCapacity:     t.cfg.HallCapacity,
		Window:           cloneInts(t.window),
		Resources:        table,
	}
	t.hasValue = true
	return t.current.clone(), true, nil
}

// Current returns the last committed snapshot. Before the first commit it
// returns a zero-occupancy snapshot and false.
func (t *Tracker) Current() (Snapshot, bool) {
	if !t.hasValue {
		return t.emptySnapshot(), false
	}
	return t.current.clone(), true
}

// Reset clears the window and forgets the last sample time so the next
// Observe commits immediately. Configuration is kept.
func (t *Tracker) Reset() {
	t.window = t.window[:0]
	t.lastSample = time.Time{}
	t.sampled = false
	t.current = Snapshot{}
	t.hasValue = false
}

func (t *Tracker) emptySnapshot() Snapshot {
	table, _ := provisioning.Compute(0)
	return Snapshot{HallCapacity: t.cfg.HallCapacity, Resources: table}
}

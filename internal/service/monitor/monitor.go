package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"langarhall/internal/config"
	"langarhall/internal/dto"
	"langarhall/internal/logger"
	"langarhall/internal/model"
	"langarhall/internal/occupancy"
	"langarhall/internal/service/metrics"
)

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("monitor stopped")

// ErrUnknownSource is returned when switching to a source that is not configured.
var ErrUnknownSource = errors.New("unknown source")

// FrameSource supplies JPEG frames on demand.
type FrameSource interface {
	Read() ([]byte, error)
	Switch(device int) error
	Close() error
}

// Detector counts people in a frame and returns the frame with their boxes drawn.
type Detector interface {
	Count(frame []byte) (int, []byte, error)
}

// Broadcaster pushes messages to dashboard viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Publisher forwards committed snapshots to an external system.
type Publisher interface {
	Publish(ctx context.Context, data dto.OccupancyData) error
}

// Recorder stores committed snapshots.
type Recorder interface {
	Insert(rec *model.OccupancyRecord) (int64, error)
}

// Dependencies are the collaborators of a Monitor. Source, Publisher and
// Recorder are optional; without a Source frames only arrive via HandleFrame.
type Dependencies struct {
	Source      FrameSource
	Detector    Detector
	Broadcaster Broadcaster
	Publisher   Publisher
	Recorder    Recorder
	Metrics     *metrics.Metrics
}

// Monitor drives the detection loop and owns the occupancy tracker. The
// tracker is only touched from the Run goroutine; other goroutines reach it
// through commands.
type Monitor struct {
	deps    Dependencies
	tracker *occupancy.Tracker
	logger  *logger.Logger

	sessionID     string
	sources       []config.Source
	current       config.Source
	frameInterval time.Duration
	now           func() time.Time

	commands chan func()
	done     chan struct{}

	// log only on transitions so a dead camera does not flood the logs
	sourceFailing   bool
	detectorFailing bool
}

func NewMonitor(cfg *config.Config, deps Dependencies, logger *logger.Logger) (*Monitor, error) {
	if deps.Detector == nil {
		return nil, fmt.Errorf("monitor needs a detector")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("monitor needs a broadcaster")
	}
	if deps.Source != nil && cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %s", cfg.FrameInterval)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	tracker, err := occupancy.New(cfg.Tracker())
	if err != nil {
		return nil, err
	}

	current, ok := cfg.Source(cfg.CameraIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, cfg.CameraIndex)
	}

	m := &Monitor{
		deps:          deps,
		tracker:       tracker,
		logger:        logger,
		sessionID:     uuid.NewString(),
		sources:       cfg.Sources,
		current:       current,
		frameInterval: cfg.FrameInterval,
		now:           time.Now,
		commands:      make(chan func()),
		done:          make(chan struct{}),
	}
	m.deps.Metrics.ObserveSnapshot(m.emptySnapshot())

	logger.Info("🎬 Monitor started - session %s, sampling every %s, window %d, capacity %d",
		m.sessionID, cfg.SamplingInterval, cfg.WindowSize, cfg.HallCapacity)
	return m, nil
}

// SessionID identifies this monitoring session in stored history.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// Sources returns the selectable sources.
func (m *Monitor) Sources() []config.Source {
	return m.sources
}

// Run reads frames every frame interval and serves commands until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.done)

	var tick <-chan time.Time
	if m.deps.Source != nil {
		ticker := time.NewTicker(m.frameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("🛑 Monitor stopped")
			return nil
		case cmd := <-m.commands:
			cmd()
		case <-tick:
			m.readFrame(ctx)
		}
	}
}

// HandleFrame processes a frame pushed by a remote camera.
func (m *Monitor) HandleFrame(ctx context.Context, frame []byte) error {
	return m.do(ctx, func() {
		m.processFrame(ctx, frame)
	})
}

// Reset clears the tracker. Configuration and the selected source are kept.
func (m *Monitor) Reset(ctx context.Context) error {
	return m.do(ctx, func() {
		m.tracker.Reset()
		m.deps.Metrics.IncResets()
		empty := m.emptySnapshot()
		m.deps.Metrics.ObserveSnapshot(empty)
		m.broadcastOccupancy(dto.NewOccupancyData(m.sessionID, m.current.Name, empty, false))
		m.logger.Info("✅ Counts reset")
	})
}

// Current returns the last committed snapshot, or a zeroed one before the first commit.
func (m *Monitor) Current(ctx context.Context) (dto.OccupancyData, error) {
	var data dto.OccupancyData
	err := m.do(ctx, func() {
		data = m.currentData()
	})
	return data, err
}

// CurrentSource returns the selected source.
func (m *Monitor) CurrentSource(ctx context.Context) (config.Source, error) {
	var src config.Source
	err := m.do(ctx, func() {
		src = m.current
	})
	return src, err
}

// SwitchSource selects another camera. The tracker keeps its state; callers
// wanting a clean start call Reset as well. A failed switch still selects the
// target, since the previous device has already been released.
func (m *Monitor) SwitchSource(ctx context.Context, id int) error {
	var target config.Source
	found := false
	for _, s := range m.sources {
		if s.ID == id {
			target, found = s, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownSource, id)
	}

	var switchErr error
	err := m.do(ctx, func() {
		if m.deps.Source != nil {
			if err := m.deps.Source.Switch(target.Device); err != nil {
				m.current = target
				m.sourceFailing = true
				m.logger.Error("Failed to switch to %s (device %d): %v", target.Name, target.Device, err)
				switchErr = err
				return
			}
		}
		m.current = target
		m.sourceFailing = false
		m.logger.Info("📷 Switched to %s (device %d)", target.Name, target.Device)
	})
	if err != nil {
		return err
	}
	return switchErr
}

// do runs fn on the Run goroutine and waits for it to finish.
func (m *Monitor) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case m.commands <- cmd:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished
	return nil
}

func (m *Monitor) readFrame(ctx context.Context) {
	frame, err := m.deps.Source.Read()
	if err != nil {
		if !m.sourceFailing {
			m.logger.Warning("Failed to read frame from %s: %v", m.current.Name, err)
			m.sourceFailing = true
		}
		return
	}
	if m.sourceFailing {
		m.logger.Info("Frames from %s are flowing again", m.current.Name)
		m.sourceFailing = false
	}
	m.processFrame(ctx, frame)
}

func (m *Monitor) processFrame(ctx context.Context, frame []byte) {
	m.deps.Metrics.IncFrames()

	count, annotated, err := m.deps.Detector.Count(frame)
	if err != nil {
		m.deps.Metrics.IncDetectorErrors()
		if !m.detectorFailing {
			m.logger.Error("Detection failed: %v", err)
			m.detectorFailing = true
		}
		return
	}
	m.detectorFailing = false

	if msg, err := json.Marshal(dto.NewFrameMessage(m.current.Name, annotated)); err == nil {
		m.deps.Broadcaster.Broadcast(msg)
	}

	m.observe(ctx, count)
}

func (m *Monitor) observe(ctx context.Context, count int) {
	snap, committed, err := m.tracker.Observe(count, m.now())
	if err != nil {
		m.deps.Metrics.IncDetectorErrors()
		m.logger.Warning("Skipping detector output: %v", err)
		return
	}
	if !committed {
		return
	}
	m.commit(ctx, snap)
}

func (m *Monitor) commit(ctx context.Context, snap occupancy.Snapshot) {
	m.deps.Metrics.IncCommits()
	m.deps.Metrics.ObserveSnapshot(snap)

	data := dto.NewOccupancyData(m.sessionID, m.current.Name, snap, true)
	m.broadcastOccupancy(data)

	if snap.CapacityExceeded {
		m.logger.Warning("⚠ Capacity Exceeded! (%d/%d)", snap.Occupancy, snap.HallCapacity)
	} else {
		m.logger.Info("Current people: %d (window %v)", snap.Occupancy, snap.Window)
	}

	if m.deps.Recorder != nil {
		if _, err := m.deps.Recorder.Insert(m.toRecord(snap)); err != nil {
			m.logger.Error("Failed to store snapshot: %v", err)
		}
	}

	if m.deps.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := m.deps.Publisher.Publish(pubCtx, data); err != nil {
			m.logger.Warning("Failed to publish snapshot: %v", err)
		}
	}
}

func (m *Monitor) broadcastOccupancy(data dto.OccupancyData) {
	msg, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("Failed to encode occupancy: %v", err)
		return
	}
	m.deps.Broadcaster.Broadcast(msg)
}

func (m *Monitor) currentData() dto.OccupancyData {
	snap, committed := m.tracker.Current()
	return dto.NewOccupancyData(m.sessionID, m.current.Name, snap, committed)
}

func (m *Monitor) emptySnapshot() occupancy.Snapshot {
	snap, _ := m.tracker.Current()
	return snap
}

func (m *Monitor) toRecord(snap occupancy.Snapshot) *model.OccupancyRecord {
	rec := &model.OccupancyRecord{
		SessionID:        m.sessionID,
		Source:           m.current.Name,
		Occupancy:        snap.Occupancy,
		HallCapacity:     snap.HallCapacity,
		CapacityExceeded: snap.CapacityExceeded,
		Timestamp:        snap.Timestamp,
	}
	for _, row := range snap.Resources.Rows() {
		rec.Resources = append(rec.Resources, model.ResourceQuantity{Name: row.Name, Quantity: row.Quantity})
	}
	return rec
}

package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"langarhall/internal/logger"
)

// ErrNoFrame is returned when the device produced no frame this time.
var ErrNoFrame = errors.New("no frame available")

// Camera reads JPEG frames from a local video device.
type Camera struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	device  int
	closed  bool
	logger  *logger.Logger
	mu      sync.Mutex
}

// Open opens the given video device.
func Open(device int, logger *logger.Logger) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}

	logger.Info("📷 Opened camera %d", device)
	return &Camera{
		capture: capture,
		frame:   gocv.NewMat(),
		device:  device,
		logger:  logger,
	}, nil
}

// Read grabs the next frame and returns it JPEG-encoded.
func (c *Camera) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, fmt.Errorf("camera %d is closed", c.device)
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(".jpg", c.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())
	return jpeg, nil
}

// Switch releases the current device and opens another one. On failure the
// camera stays closed and Read returns an error until a later Switch succeeds.
func (c *Camera) Switch(device int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("camera is closed")
	}
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
	}
	c.device = device

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", device, err)
	}
	c.capture = capture
	c.logger.Info("📷 Switched to camera %d", device)
	return nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.capture != nil {
		err = c.capture.Close()
		c.capture = nil
	}
	c.frame.Close()
	return err
}

package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"langarhall/internal/config"
	"langarhall/internal/logger"
)

// PersonClassID is the COCO class id of "person" in the SSD MobileNet model.
const PersonClassID = 1

type DetectionResult struct {
	ClassID    int
	Label      string
	Confidence float64
	X          int
	Y          int
	Width      int
	Height     int
}

// DetectorService runs the SSD network over JPEG frames.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	threshold  float64
	modelPath  string
	configPath string
	logger     *logger.Logger
	mu         sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewDetectorService creates a detector with model/config paths and a logger.
// A missing model is logged; Count then fails until a working model is provided.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		threshold:  config.DetectionThreshold,
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)

	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		s.ready = false
		return s.net.Close()
	}
	return nil
}

// Count returns the number of people in the frame and the frame with their boxes drawn.
func (s *DetectorService) Count(frame []byte) (int, []byte, error) {
	detections, err := s.DetectObjects(frame)
	if err != nil {
		return 0, nil, err
	}

	people := make([]DetectionResult, 0, len(detections))
	for _, d := range detections {
		if d.ClassID == PersonClassID {
			people = append(people, d)
		}
	}
	if len(people) == 0 {
		return 0, frame, nil
	}

	annotated, err := s.DrawRectangle(people, frame)
	if err != nil {
		s.logger.Warning("Failed to draw rectangles: %v", err)
		annotated = frame
	}
	return len(people), annotated, nil
}

// DetectObjects runs the DNN on the image and returns the detections above the confidence threshold.
func (s *DetectorService) DetectObjects(imageBytes []byte) ([]DetectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, fmt.Errorf("detection network not initialized")
	}

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}
	//Create blob with parameters that fit ssd coco net input
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	var results []DetectionResult

	// Process detections with output: [ batch_id, class_id, confidence, x1, y1, x2, y2 ]
	outputReshaped := output.Reshape(1, output.Total()/7)
	defer outputReshaped.Close()
	for i := 0; i < outputReshaped.Rows(); i++ {
		confidence := outputReshaped.GetFloatAt(i, 2)
		if float64(confidence) <= s.threshold {
			continue
		}
		classID := int(outputReshaped.GetFloatAt(i, 1))
		x := int(outputReshaped.GetFloatAt(i, 3) * float32(mat.Cols()))
		y := int(outputReshaped.GetFloatAt(i, 4) * float32(mat.Rows()))
		width := int(outputReshaped.GetFloatAt(i, 5)*float32(mat.Cols())) - x
		height := int(outputReshaped.GetFloatAt(i, 6)*float32(mat.Rows())) - y

		results = append(results, DetectionResult{
			ClassID:    classID,
			Label:      getClassLabel(classID),
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      width,
			Height:     height,
		})
	}

	return results, nil
}

// DrawRectangle draws detection results on the image and returns a re-encoded JPEG buffer.
func (s *DetectorService) DrawRectangle(detections []DetectionResult, img []byte) ([]byte, error) {
	green := color.RGBA{R: 0, G: 255, B: 0, A: 0}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	for _, detection := range detections {
		rect := image.Rect(detection.X, detection.Y, detection.X+detection.Width, detection.Y+detection.Height)
		if err := gocv.Rectangle(&mat, rect, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Label, detection.Confidence)
		pt := image.Pt(detection.X, detection.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, green, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())

	return finalImage, nil
}

// getClassLabel maps model class IDs to human-readable labels.
func getClassLabel(classID int) string {
	labels := map[int]string{
		1:  "person",
		2:  "bicycle",
		3:  "car",
		16: "bird",
		17: "cat",
		18: "dog",
		44: "bottle",
		47: "cup",
		51: "bowl",
		62: "chair",
		67: "dining table",
	}

	if label, exists := labels[classID]; exists {
		return label
	}
	return fmt.Sprintf("unknown%d", classID)
}

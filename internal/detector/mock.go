package detector

import (
	"encoding/json"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	err      error
	script   []Outcome
	calls    int
	closed   int
	detConf  float64
	trackCon float64
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetScript queues per-call results. Each Detect call consumes one entry;
// once the script is exhausted Detect falls back to SetHands/SetError.
func (m *MockDetector) SetScript(outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = outcomes
}

// Detect returns the next scripted outcome, or the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next.Hands, next.Err
	}

	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// SetConfidence records the thresholds it was given.
func (m *MockDetector) SetConfidence(detection, tracking float64) error {
	if err := validateConfidence(detection, tracking); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detConf = detection
	m.trackCon = tracking
	return nil
}

// Confidence returns the thresholds last passed to SetConfidence.
func (m *MockDetector) Confidence() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detConf, m.trackCon
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed returns how many times Close was called.
func (m *MockDetector) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close counts the call and releases nothing.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Found wraps hands into a scripted Detected outcome.
func Found(hands ...HandLandmarks) Outcome {
	return Outcome{Kind: Detected, Hands: hands}
}

// ServiceReply encodes hands as one landmark service response line, without the newline.
func ServiceReply(hands ...HandLandmarks) ([]byte, error) {
	wire := make([]wireHand, len(hands))
	for i, h := range hands {
		wire[i] = wireHand{Points: h.Points[:], Handedness: h.Handedness, Score: h.Score}
	}
	return json.Marshal(struct {
		Hands []wireHand `json:"hands"`
	}{wire})
}

// PinchLandmarks returns a right hand in a width x height frame whose index
// fingertip sits on pixel index and whose thumb tip sits distance pixels below it.
// Points are placed at pixel centers so truncation lands on the intended pixel.
func PinchLandmarks(width, height int, index image.Point, distance int) HandLandmarks {
	hand := OpenPalmLandmarks()

	center := func(px, size int) float64 {
		return (float64(px) + 0.5) / float64(size)
	}

	hand.Points[IndexTip] = Point3D{X: center(index.X, width), Y: center(index.Y, height)}
	hand.Points[ThumbTip] = Point3D{X: center(index.X+10, width), Y: center(index.Y+distance, height)}
	return hand
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

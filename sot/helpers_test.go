package sot

import (
	"image"
	"math"
	"testing"

	"github.com/LdDl/sot-go/mot"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakePredictor moves its state by a constant step on every Predict
type fakePredictor struct {
	state      mot.Rectangle
	step       mot.Point
	predicts   int
	updates    []mot.Rectangle
	failUpdate bool
}

func (p *fakePredictor) Predict() {
	p.state.X += p.step.X
	p.state.Y += p.step.Y
	p.predicts++
}

func (p *fakePredictor) Update(measurement mot.Rectangle) error {
	p.updates = append(p.updates, measurement)
	if p.failUpdate {
		return errors.New("singular covariance")
	}
	p.state = measurement
	return nil
}

func (p *fakePredictor) GetState() (mot.Rectangle, bool) {
	return p.state, p.state.Area() > 0
}

func (p *fakePredictor) GetPredictedCenter() (mot.Point, bool) {
	return p.state.Center(), p.state.Area() > 0
}

func (p *fakePredictor) GetPositionUncertainty() float64 {
	return 0
}

func (p *fakePredictor) GetVelocityMagnitude() float64 {
	return math.Hypot(p.step.X, p.step.Y)
}

// fakeMatcher answers every lookup with the first candidate and a fixed similarity
type fakeMatcher struct {
	similarity float64
	registered []int
	lost       []int
	frames     int
}

func (m *fakeMatcher) ExtractFeatures(frame image.Image, box mot.Rectangle) ([]float64, bool) {
	return []float64{1}, frame != nil
}

func (m *fakeMatcher) FindBestMatch(frame image.Image, candidates []mot.Detection, classID int) (mot.AppearanceMatch, bool) {
	if len(candidates) == 0 || m.similarity <= 0 {
		return mot.AppearanceMatch{}, false
	}
	return mot.AppearanceMatch{Index: 0, Detection: candidates[0], Similarity: m.similarity}, true
}

func (m *fakeMatcher) RegisterObject(trackID, classID int, features []float64) {
	m.registered = append(m.registered, trackID)
}

func (m *fakeMatcher) MarkAsLost(trackID int) {
	m.lost = append(m.lost, trackID)
}

func (m *fakeMatcher) IncrementFrame() {
	m.frames++
}

// testEngine wires an engine with fake predictors stepping by step.
// The returned getter gives the predictor of the current session.
func testEngine(t *testing.T, cfg Config, step mot.Point, opts ...Option) (*Engine, func() *fakePredictor) {
	t.Helper()
	var current *fakePredictor
	factory := func(initial mot.Rectangle) PositionPredictor {
		current = &fakePredictor{state: initial, step: step}
		return current
	}
	all := append([]Option{WithPredictorFactory(factory), WithLogger(golog.NewTestLogger(t))}, opts...)
	engine, err := New(cfg, all...)
	require.NoError(t, err)
	return engine, func() *fakePredictor { return current }
}

var startBox = image.Rect(100, 100, 150, 150)

func startTarget(t *testing.T, engine *Engine) {
	t.Helper()
	require.NoError(t, engine.StartTracking(7, 2, startBox, 0.9, mot.NewPoint(125, 125)))
}

func det(x1, y1, x2, y2, trackID, classID int) mot.Detection {
	return mot.NewDetection(x1, y1, x2, y2, trackID, classID, 0.9)
}

// missFrames feeds n frames with the given detections and checks the engine stays active
func missFrames(t *testing.T, engine *Engine, n int, detections []mot.Detection) {
	t.Helper()
	for i := 0; i < n; i++ {
		active, _ := engine.Update(detections, nil)
		require.True(t, active, "frame %d", i+1)
	}
}

package mot

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// BBoxPredictor is a constant-velocity position predictor using 8-D Kalman filter for full bounding box dynamics.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
type BBoxPredictor struct {
	currentBBox   Rectangle
	predictedBBox Rectangle
	// Number of Predict() calls since the last measurement
	missed int
	// Process noise (acceleration) standard deviation
	stdDevA float64
	tracker *kalman_filter.KalmanBBox
}

// NewBBoxPredictorWithTime creates a new BBoxPredictor with specified time step.
func NewBBoxPredictorWithTime(currentBbox Rectangle, dt float64) *BBoxPredictor {
	centerX := currentBbox.X + currentBbox.Width/2.0
	centerY := currentBbox.Y + currentBbox.Height/2.0

	// Kalman filter props. Zero control input keeps the motion model constant-velocity
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(centerX, centerY, currentBbox.Width, currentBbox.Height),
	)

	return &BBoxPredictor{
		currentBBox:   currentBbox,
		predictedBBox: currentBbox,
		missed:        0,
		stdDevA:       stdDevA,
		tracker:       kf,
	}
}

// NewBBoxPredictor creates a new BBoxPredictor with default time step of 1.0.
func NewBBoxPredictor(currentBbox Rectangle) *BBoxPredictor {
	return NewBBoxPredictorWithTime(currentBbox, 1.0)
}

// Predict executes Kalman filter prediction step
func (p *BBoxPredictor) Predict() {
	p.tracker.Predict()
	cx, cy, w, h := p.tracker.GetState()
	p.predictedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	p.missed++
}

// Update executes Kalman filter update step with the measured bounding box
func (p *BBoxPredictor) Update(measurement Rectangle) error {
	newCx := measurement.X + measurement.Width/2.0
	newCy := measurement.Y + measurement.Height/2.0

	err := p.tracker.Update(newCx, newCy, measurement.Width, measurement.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update bbox predictor")
	}

	// Get smoothed state from Kalman filter
	cx, cy, w, h := p.tracker.GetState()
	p.currentBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	p.predictedBBox = p.currentBBox
	p.missed = 0
	return nil
}

// GetState returns the latest box estimate. Estimates with a collapsed size are reported as unavailable
func (p *BBoxPredictor) GetState() (Rectangle, bool) {
	if p.predictedBBox.Area() == 0 || math.IsNaN(p.predictedBBox.X) || math.IsNaN(p.predictedBBox.Y) {
		return Rectangle{}, false
	}
	return p.predictedBBox, true
}

// GetPredictedCenter returns center of the latest box estimate
func (p *BBoxPredictor) GetPredictedCenter() (Point, bool) {
	state, ok := p.GetState()
	if !ok {
		return Point{}, false
	}
	return state.Center(), true
}

// GetPositionUncertainty returns a pixel radius the position estimate is trusted within.
// It is zero right after a measurement and grows with every unmeasured prediction.
func (p *BBoxPredictor) GetPositionUncertainty() float64 {
	if p.missed == 0 {
		return 0
	}
	n := float64(p.missed)
	return p.stdDevA*n + p.GetVelocityMagnitude()*n*0.1
}

// GetVelocityMagnitude returns speed of the box center in pixels per time step
func (p *BBoxPredictor) GetVelocityMagnitude() float64 {
	vx, vy, _, _ := p.tracker.GetVelocity()
	return math.Hypot(vx, vy)
}

// GetVelocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (p *BBoxPredictor) GetVelocity() (float64, float64, float64, float64) {
	return p.tracker.GetVelocity()
}

// GetBBox returns the last box corrected by a measurement
func (p *BBoxPredictor) GetBBox() Rectangle {
	return p.currentBBox
}

package mot

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// CenterPredictor is a position predictor using 2D Kalman filter for center position.
// Box size is not filtered: predicted boxes keep the size of the last measurement.
type CenterPredictor struct {
	currentBBox           Rectangle
	currentCenter         Point
	predictedNextPosition Point
	// Center displacement per time step, estimated from consecutive corrected states
	velocity Point
	missed   int
	stdDevA  float64
	tracker  *kalman_filter.Kalman2D
}

func NewCenterPredictorWithTime(currentBbox Rectangle, dt float64) *CenterPredictor {
	center := currentBbox.Center()

	/* Kalman filter props */
	ux := 0.0
	uy := 0.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(center.X, center.Y))
	return &CenterPredictor{
		currentBBox:           currentBbox,
		currentCenter:         center,
		predictedNextPosition: center,
		stdDevA:               stdDevA,
		tracker:               kf,
	}
}

func NewCenterPredictor(currentBbox Rectangle) *CenterPredictor {
	return NewCenterPredictorWithTime(currentBbox, 1.0)
}

// Predict execute Kalman filter's first step but without re-evaluating state vector based on Kalman gain
func (p *CenterPredictor) Predict() {
	p.tracker.Predict()
	stateX, stateY := p.tracker.GetState()
	p.predictedNextPosition.X = stateX
	p.predictedNextPosition.Y = stateY
	p.missed++
}

// Update updates position and execute Kalman filter's second step (evalute state vector based on Kalman gain)
func (p *CenterPredictor) Update(measurement Rectangle) error {
	measuredCenter := measurement.Center()
	err := p.tracker.Update(measuredCenter.X, measuredCenter.Y)
	if err != nil {
		return errors.Wrap(err, "Can't update center predictor")
	}
	stateX, stateY := p.tracker.GetState()
	steps := math.Max(float64(p.missed), 1)
	p.velocity = Point{
		X: (stateX - p.currentCenter.X) / steps,
		Y: (stateY - p.currentCenter.Y) / steps,
	}
	p.currentCenter = Point{X: stateX, Y: stateY}
	p.predictedNextPosition = p.currentCenter
	p.currentBBox = NewRectAround(p.currentCenter, measurement.Width, measurement.Height)
	p.missed = 0
	return nil
}

// GetState returns box centered on the predicted position
func (p *CenterPredictor) GetState() (Rectangle, bool) {
	if math.IsNaN(p.predictedNextPosition.X) || math.IsNaN(p.predictedNextPosition.Y) {
		return Rectangle{}, false
	}
	return NewRectAround(p.predictedNextPosition, p.currentBBox.Width, p.currentBBox.Height), true
}

// GetPredictedCenter returns the predicted position
func (p *CenterPredictor) GetPredictedCenter() (Point, bool) {
	if math.IsNaN(p.predictedNextPosition.X) || math.IsNaN(p.predictedNextPosition.Y) {
		return Point{}, false
	}
	return p.predictedNextPosition, true
}

// GetPositionUncertainty returns a pixel radius the position estimate is trusted within
func (p *CenterPredictor) GetPositionUncertainty() float64 {
	n := float64(p.missed)
	return p.stdDevA*n + p.GetVelocityMagnitude()*n*0.1
}

// GetVelocityMagnitude returns speed of the center in pixels per time step
func (p *CenterPredictor) GetVelocityMagnitude() float64 {
	return math.Hypot(p.velocity.X, p.velocity.Y)
}

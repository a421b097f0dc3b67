package mot

import (
	"testing"
)

func TestNewBBoxPredictor(t *testing.T) {
	bbox := Rectangle{X: 10, Y: 20, Width: 30, Height: 40}
	predictor := NewBBoxPredictor(bbox)

	if predictor == nil {
		t.Fatal("NewBBoxPredictor returned nil")
	}

	state, ok := predictor.GetState()
	if !ok {
		t.Fatal("Fresh predictor should have a state")
	}
	if state != bbox {
		t.Errorf("Expected state %v, got %v", bbox, state)
	}

	center, ok := predictor.GetPredictedCenter()
	if !ok || center != (Point{X: 25, Y: 40}) {
		t.Errorf("Expected center (25, 40), got %v (ok=%t)", center, ok)
	}

	if predictor.GetPositionUncertainty() != 0 {
		t.Errorf("Fresh predictor should have zero uncertainty, got %f", predictor.GetPositionUncertainty())
	}
}

func TestBBoxPredictorPredict(t *testing.T) {
	predictor := NewBBoxPredictor(Rectangle{X: 10, Y: 20, Width: 30, Height: 40})

	predictor.Predict()

	state, ok := predictor.GetState()
	if !ok {
		t.Fatal("Predicted state should be available")
	}
	if state.Width <= 0 || state.Height <= 0 {
		t.Error("Predicted bbox should have positive dimensions")
	}
}

func TestBBoxPredictorFollowsMotion(t *testing.T) {
	predictor := NewBBoxPredictor(Rectangle{X: 0, Y: 100, Width: 40, Height: 40})

	var last Rectangle
	for i := 1; i <= 15; i++ {
		predictor.Predict()
		last = Rectangle{X: float64(i * 5), Y: 100, Width: 40, Height: 40}
		err := predictor.Update(last)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	if predictor.GetVelocityMagnitude() <= 0 {
		t.Errorf("Moving object should have positive speed, got %f", predictor.GetVelocityMagnitude())
	}

	predictor.Predict()
	center, ok := predictor.GetPredictedCenter()
	if !ok {
		t.Fatal("Predicted center should be available")
	}
	if center.X <= last.Center().X {
		t.Errorf("Prediction should continue motion to the right: predicted %f, last %f", center.X, last.Center().X)
	}
}

func TestBBoxPredictorUncertaintyGrows(t *testing.T) {
	predictor := NewBBoxPredictor(Rectangle{X: 0, Y: 0, Width: 40, Height: 40})
	previous := predictor.GetPositionUncertainty()
	for i := 0; i < 5; i++ {
		predictor.Predict()
		current := predictor.GetPositionUncertainty()
		if current <= previous {
			t.Errorf("Uncertainty should grow without measurements: step %d, %f <= %f", i, current, previous)
		}
		previous = current
	}
	err := predictor.Update(Rectangle{X: 0, Y: 0, Width: 40, Height: 40})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if predictor.GetPositionUncertainty() != 0 {
		t.Error("Measurement should reset uncertainty")
	}
}

func TestBBoxPredictorSizeTracking(t *testing.T) {
	predictor := NewBBoxPredictor(Rectangle{X: 0, Y: 0, Width: 100, Height: 100})

	// Simulate object growing over several frames
	sizes := []struct{ w, h float64 }{
		{102, 102},
		{104, 104},
		{106, 106},
		{108, 108},
	}

	for _, size := range sizes {
		predictor.Predict()
		err := predictor.Update(Rectangle{X: 0, Y: 0, Width: size.w, Height: size.h})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	// Velocity for width and height should be positive
	_, _, vw, vh := predictor.GetVelocity()
	if vw <= 0 {
		t.Errorf("Width velocity should be positive for growing object, got %f", vw)
	}
	if vh <= 0 {
		t.Errorf("Height velocity should be positive for growing object, got %f", vh)
	}
	if predictor.GetBBox().Width <= 100 {
		t.Errorf("Corrected width should grow, got %f", predictor.GetBBox().Width)
	}
}

func TestCenterPredictorFollowsMotion(t *testing.T) {
	predictor := NewCenterPredictor(Rectangle{X: 100, Y: 0, Width: 20, Height: 30})

	var last Rectangle
	for i := 1; i <= 15; i++ {
		predictor.Predict()
		last = Rectangle{X: 100, Y: float64(i * 4), Width: 20, Height: 30}
		err := predictor.Update(last)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	if predictor.GetVelocityMagnitude() <= 0 {
		t.Errorf("Moving object should have positive speed, got %f", predictor.GetVelocityMagnitude())
	}

	predictor.Predict()
	state, ok := predictor.GetState()
	if !ok {
		t.Fatal("Predicted state should be available")
	}
	if state.Width != 20 || state.Height != 30 {
		t.Errorf("Center predictor should keep measured size, got %fx%f", state.Width, state.Height)
	}
	if state.Center().Y <= last.Center().Y {
		t.Errorf("Prediction should continue motion downwards: predicted %f, last %f", state.Center().Y, last.Center().Y)
	}
	if predictor.GetPositionUncertainty() <= 0 {
		t.Error("Unmeasured prediction should carry uncertainty")
	}
}

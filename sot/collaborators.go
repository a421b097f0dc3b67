package sot

import (
	"image"

	"github.com/LdDl/sot-go/mot"
)

// PositionPredictor estimates target position while detections are missing.
// mot.BBoxPredictor and mot.CenterPredictor implement it.
type PositionPredictor interface {
	Predict()
	Update(measurement mot.Rectangle) error
	GetState() (mot.Rectangle, bool)
	GetPredictedCenter() (mot.Point, bool)
	GetPositionUncertainty() float64
	GetVelocityMagnitude() float64
}

// PredictorFactory creates a predictor seeded with the initial target box.
type PredictorFactory func(initial mot.Rectangle) PositionPredictor

// DefaultPredictorFactory seeds an 8-D Kalman box predictor
func DefaultPredictorFactory(initial mot.Rectangle) PositionPredictor {
	return mot.NewBBoxPredictor(initial)
}

// AppearanceMatcher extracts and compares visual features of detections.
// appearance.HistogramMatcher implements it.
type AppearanceMatcher interface {
	ExtractFeatures(frame image.Image, box mot.Rectangle) ([]float64, bool)
	FindBestMatch(frame image.Image, candidates []mot.Detection, classID int) (mot.AppearanceMatch, bool)
	RegisterObject(trackID, classID int, features []float64)
	MarkAsLost(trackID int)
	IncrementFrame()
}

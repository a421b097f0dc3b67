package mot

import (
	"image"
	"math"
)

// DetectionRowLen is the number of fields in a raw detection row:
// x1, y1, x2, y2, track ID, confidence, class ID
const DetectionRowLen = 7

// Detection is a single per-frame candidate produced by an upstream detector/tracker.
type Detection struct {
	// Box in pixel corner coordinates
	Box image.Rectangle
	// TrackID assigned by the upstream multi-object tracker. Opaque
	TrackID int
	// ClassID of the detected object
	ClassID int
	// Confidence of the detector
	Confidence float64
}

// NewDetection creates detection from corner coordinates
func NewDetection(x1, y1, x2, y2, trackID, classID int, confidence float64) Detection {
	return Detection{
		Box:        image.Rect(x1, y1, x2, y2),
		TrackID:    trackID,
		ClassID:    classID,
		Confidence: confidence,
	}
}

// Rect returns detection's bounding box as Rectangle
func (d Detection) Rect() Rectangle {
	return NewRectFrom(d.Box)
}

// Center returns detection's derived center
func (d Detection) Center() Point {
	return d.Rect().Center()
}

// Valid reports whether detection is well-formed: non-empty box and finite confidence
func (d Detection) Valid() bool {
	if d.Box.Dx() <= 0 || d.Box.Dy() <= 0 {
		return false
	}
	if math.IsNaN(d.Confidence) || math.IsInf(d.Confidence, 0) {
		return false
	}
	return true
}

// ParseDetectionRow converts raw row [x1, y1, x2, y2, track ID, confidence, class ID] into Detection.
// Returns false for rows with insufficient fields or a malformed box.
func ParseDetectionRow(row []float64) (Detection, bool) {
	if len(row) < DetectionRowLen {
		return Detection{}, false
	}
	// image.Rect canonicalizes corners, so inverted boxes are rejected before that
	if row[2] <= row[0] || row[3] <= row[1] {
		return Detection{}, false
	}
	det := Detection{
		Box:        image.Rect(int(row[0]), int(row[1]), int(row[2]), int(row[3])),
		TrackID:    int(row[4]),
		Confidence: clampFloat64(row[5], 0, 1),
		ClassID:    int(row[6]),
	}
	if !det.Valid() {
		return Detection{}, false
	}
	return det, true
}

// DetectionsFromRows parses raw rows skipping malformed ones
func DetectionsFromRows(rows [][]float64) []Detection {
	detections := make([]Detection, 0, len(rows))
	for _, row := range rows {
		det, ok := ParseDetectionRow(row)
		if !ok {
			continue
		}
		detections = append(detections, det)
	}
	return detections
}

// AppearanceMatch is the result of an appearance lookup over candidate detections.
type AppearanceMatch struct {
	// Index of the matched candidate in the slice passed to the matcher
	Index      int
	Detection  Detection
	Similarity float64
}

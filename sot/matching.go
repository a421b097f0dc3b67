package sot

import (
	"image"
	"math"

	"github.com/LdDl/sot-go/mot"
)

// Match is the tagged result of the matching hierarchy.
type Match struct {
	Kind MatchKind
	// Index of the matched detection in the frame's well-formed detections
	Index     int
	Detection mot.Detection
	// Score is IoU for spatial, pixel distance for distance and similarity for appearance matches
	Score float64
	// Lenient marks spatial matches found with the relaxed IoU threshold
	Lenient bool
}

// Found reports whether the match holds a detection
func (m Match) Found() bool {
	return m.Kind != NoMatch && m.Kind != ""
}

var noMatch = Match{Kind: NoMatch, Index: -1}

// searchContext is the reference state strategies search around.
type searchContext struct {
	refBox      mot.Rectangle
	refCenter   mot.Point
	refDiagonal float64
	framesLost  int
	uncertainty float64
}

// matchByID finds the detection carrying the target's track ID.
// With anyClass the upstream tracker's ID is trusted over a flickering label.
func matchByID(detections []mot.Detection, trackID int, anyClass bool, classOK func(int) bool) Match {
	for i, det := range detections {
		if det.TrackID != trackID {
			continue
		}
		if !anyClass && !classOK(det.ClassID) {
			continue
		}
		return Match{Kind: IDMatch, Index: i, Detection: det, Score: 1.0}
	}
	return noMatch
}

// matchBySpatial finds the class-compatible detection overlapping the search box the most
func matchBySpatial(detections []mot.Detection, searchBox mot.Rectangle, threshold float64, iou mot.IoUFunc, classOK func(int) bool) Match {
	best := noMatch
	bestIoU := 0.0
	for i, det := range detections {
		if !classOK(det.ClassID) {
			continue
		}
		value := iou(det.Rect(), searchBox)
		if value > bestIoU {
			bestIoU = value
			best = Match{Kind: SpatialMatch, Index: i, Detection: det, Score: value}
		}
	}
	if !best.Found() || bestIoU < threshold {
		return noMatch
	}
	return best
}

// matchByDistance finds the nearest class-compatible detection within radius
func matchByDistance(detections []mot.Detection, center mot.Point, radius float64, classOK func(int) bool) Match {
	best := noMatch
	bestDistance := math.MaxFloat64
	for i, det := range detections {
		if !classOK(det.ClassID) {
			continue
		}
		distance := mot.Distance(center, det.Center())
		if distance <= radius && distance < bestDistance {
			bestDistance = distance
			best = Match{Kind: DistanceMatch, Index: i, Detection: det, Score: distance}
		}
	}
	return best
}

// matchByAppearance asks the appearance matcher about detections gated to gateRadius around center.
// Gating keeps visually similar but distant objects out.
func matchByAppearance(detections []mot.Detection, frame image.Image, center mot.Point, gateRadius float64, classID int, matcher AppearanceMatcher, classOK func(int) bool) Match {
	if matcher == nil || frame == nil {
		return noMatch
	}
	gated := make([]mot.Detection, 0, len(detections))
	indices := make([]int, 0, len(detections))
	for i, det := range detections {
		if !classOK(det.ClassID) {
			continue
		}
		if mot.Distance(center, det.Center()) > gateRadius {
			continue
		}
		gated = append(gated, det)
		indices = append(indices, i)
	}
	if len(gated) == 0 {
		return noMatch
	}
	found, ok := matcher.FindBestMatch(frame, gated, classID)
	if !ok || found.Index < 0 || found.Index >= len(gated) {
		return noMatch
	}
	return Match{Kind: AppearanceMatch, Index: indices[found.Index], Detection: gated[found.Index], Score: found.Similarity}
}

// strategyFunc is one step of the matching hierarchy
type strategyFunc func(detections []mot.Detection, frame image.Image, ctx searchContext) Match

// strategies returns the ordered strategy list for the configured mode.
// The lenient list is used in the extended loss window.
func (e *Engine) strategies(lenient bool) []strategyFunc {
	byID := func(detections []mot.Detection, _ image.Image, _ searchContext) Match {
		return matchByID(detections, e.identity.TrackID, e.cfg.FlexibleClassMatching, e.classes.Compatible)
	}
	spatial := func(detections []mot.Detection, _ image.Image, ctx searchContext) Match {
		return matchBySpatial(detections, e.searchBox(ctx), e.cfg.IoUThreshold, e.iou, e.classes.Compatible)
	}
	lenientSpatial := func(detections []mot.Detection, _ image.Image, ctx searchContext) Match {
		m := matchBySpatial(detections, e.searchBox(ctx), e.cfg.lenientIoUThreshold(), e.iou, e.classes.Compatible)
		m.Lenient = m.Found()
		return m
	}
	distance := func(detections []mot.Detection, _ image.Image, ctx searchContext) Match {
		return matchByDistance(detections, ctx.refCenter, e.distanceRadius(ctx), e.classes.Compatible)
	}
	appearance := func(detections []mot.Detection, frame image.Image, ctx searchContext) Match {
		gate := ctx.refDiagonal * e.cfg.AppearanceGateFactor
		return matchByAppearance(detections, frame, ctx.refCenter, gate, e.identity.ClassID, e.matcher, e.classes.Compatible)
	}

	switch e.cfg.Matching {
	case MatchingIDOnly:
		if lenient {
			return nil
		}
		return []strategyFunc{byID}
	case MatchingSpatialOnly:
		if lenient {
			return []strategyFunc{lenientSpatial}
		}
		return []strategyFunc{spatial}
	default:
		if lenient {
			return []strategyFunc{lenientSpatial, distance, appearance}
		}
		return []strategyFunc{byID, spatial, distance, appearance}
	}
}

// findMatch runs strategies in order and returns the first match
func (e *Engine) findMatch(detections []mot.Detection, frame image.Image, ctx searchContext, lenient bool) Match {
	if len(detections) == 0 {
		return noMatch
	}
	for _, strategy := range e.strategies(lenient) {
		if m := strategy(detections, frame, ctx); m.Found() {
			return m
		}
	}
	return noMatch
}

// searchContext captures the predictor estimate, falling back to the last known box
func (e *Engine) searchContext() searchContext {
	ctx := searchContext{
		refBox:     e.identity.LastKnownBBox,
		framesLost: e.identity.FramesSinceConfirmed,
	}
	if e.predictor != nil {
		if state, ok := e.predictor.GetState(); ok {
			ctx.refBox = state
		}
		ctx.uncertainty = e.predictor.GetPositionUncertainty()
	}
	ctx.refCenter = ctx.refBox.Center()
	if e.predictor != nil {
		if center, ok := e.predictor.GetPredictedCenter(); ok {
			ctx.refCenter = center
		}
	}
	ctx.refDiagonal = ctx.refBox.Diagonal()
	if ctx.refDiagonal == 0 {
		ctx.refDiagonal = e.identity.ConfirmedBBox.Diagonal()
	}
	return ctx
}

// searchBox is the reference box grown linearly with frames lost, capped
func (e *Engine) searchBox(ctx searchContext) mot.Rectangle {
	if !e.cfg.EnableSearchExpansion || ctx.framesLost == 0 {
		return ctx.refBox
	}
	growth := math.Min(float64(ctx.framesLost)*e.cfg.SearchExpansionRate, e.cfg.MaxSearchExpansion)
	return ctx.refBox.Expand(1 + growth)
}

// distanceRadius adapts the center-distance radius to target size and loss duration
func (e *Engine) distanceRadius(ctx searchContext) float64 {
	radius := ctx.refDiagonal * e.cfg.DistanceFactor * (1 + float64(ctx.framesLost)*e.cfg.DistanceExpansionRate)
	return radius + ctx.uncertainty
}

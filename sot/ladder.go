package sot

import (
	"image"
	"math"

	"github.com/LdDl/sot-go/mot"
)

// frameInput is what one Update call received
type frameInput struct {
	// valid are the well-formed detections
	valid []mot.Detection
	// raw is the number of detections before malformed ones were dropped
	raw   int
	frame image.Image
}

// Update advances the engine by one frame.
// Returns false once no target is tracked: never started, cleared or lost. On terminal loss the
// Result carries the LossReport. A true flag with nil Result means the predictor carries the target.
func (e *Engine) Update(detections []mot.Detection, frame image.Image) (bool, *Result) {
	if e.identity == nil {
		return false, nil
	}
	e.frameIndex++
	e.stats.Frames++
	if e.matcher != nil {
		e.matcher.IncrementFrame()
	}
	if frame != nil {
		e.outOfFrame.setFrameSize(frame.Bounds().Size())
	}
	in := frameInput{
		valid: wellFormed(detections),
		raw:   len(detections),
		frame: frame,
	}
	if e.predictor != nil {
		e.predictor.Predict()
	}
	if e.identity.FramesSinceConfirmed > 0 {
		e.updateOutOfFrame()
	}

	if e.tentative != nil {
		return e.updateTentative(in)
	}

	candidates := in.valid
	m := e.findMatch(candidates, frame, e.searchContext(), false)
	if m.Found() {
		if e.identity.FramesSinceConfirmed < e.cfg.NormalTolerance {
			return true, e.confirm(m, frame)
		}
		if result, ok := e.reacquire(m, frame, false); ok {
			return true, result
		}
		candidates = without(candidates, m.Index)
	}
	return e.degrade(in, candidates, true)
}

// degrade counts a missed frame and moves down the ladder.
// With search the lenient hierarchy runs over candidates in the extended window.
func (e *Engine) degrade(in frameInput, candidates []mot.Detection, search bool) (bool, *Result) {
	e.identity.FramesSinceConfirmed++
	framesLost := e.identity.FramesSinceConfirmed
	e.updateOutOfFrame()

	switch {
	case framesLost <= e.cfg.NormalTolerance:
		e.followPredictor()
		e.transition(StateLostWithinTolerance, "no match, following prediction")
		return true, nil
	case framesLost <= e.lossWindow():
		if search {
			m := e.findMatch(candidates, in.frame, e.searchContext(), true)
			if m.Found() {
				if result, ok := e.reacquire(m, in.frame, true); ok {
					return true, result
				}
			}
		}
		e.followPredictor()
		e.transition(StateLostExtended, "normal tolerance exhausted")
		return true, e.predictionResult()
	default:
		return false, e.declareLoss(in)
	}
}

// reacquire passes a post-long-loss match through the verification gate and the tentative state.
// counted tells the miss was already counted for this frame.
func (e *Engine) reacquire(m Match, frame image.Image, counted bool) (*Result, bool) {
	if ok, reason := e.verify(m, frame); !ok {
		e.stats.GateRejections++
		e.logger.Infow("re-acquisition rejected",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"frames_lost", e.identity.FramesSinceConfirmed,
			"kind", m.Kind,
			"score", m.Score,
			"candidate_id", m.Detection.TrackID,
			"reason", reason,
		)
		return nil, false
	}
	if e.needsConfirmation(m) {
		framesLost := e.identity.FramesSinceConfirmed
		if !counted {
			framesLost++
		}
		if framesLost > e.lossWindow() {
			e.logger.Debugw("re-acquisition candidate past loss window",
				"session", e.identity.SessionID,
				"frame", e.frameIndex,
				"candidate_id", m.Detection.TrackID,
				"frames_lost", framesLost,
			)
			return nil, false
		}
		return e.enterTentative(m, counted), true
	}
	return e.confirm(m, frame), true
}

// followPredictor moves the last known position to the predictor estimate
func (e *Engine) followPredictor() {
	if e.predictor == nil {
		return
	}
	state, ok := e.predictor.GetState()
	if !ok {
		return
	}
	e.identity.LastKnownBBox = state
	e.identity.LastKnownCenter = state.Center()
	if center, ok := e.predictor.GetPredictedCenter(); ok {
		e.identity.LastKnownCenter = center
	}
}

// updateOutOfFrame runs the out-of-frame monitor on the predicted center
func (e *Engine) updateOutOfFrame() {
	center := e.identity.LastKnownCenter
	if e.predictor != nil {
		if predicted, ok := e.predictor.GetPredictedCenter(); ok {
			center = predicted
		}
	}
	if e.outOfFrame.update(center, e.cfg.OutOfFrameMargin) {
		e.logger.Infow("target left frame",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"edge", e.outOfFrame.ExitEdge,
			"center", center,
		)
	}
}

// lossWindow is the number of missed frames tolerated before terminal loss
func (e *Engine) lossWindow() int {
	return e.cfg.NormalTolerance + e.cfg.ExtendedTolerance
}

// predictionResult reports the predictor estimate with confidence decaying towards the floor
func (e *Engine) predictionResult() *Result {
	window := float64(e.lossWindow() + 1)
	decay := 1 - float64(e.identity.FramesSinceConfirmed)/window
	confidence := math.Max(e.cfg.PredictionConfidenceFloor, e.identity.SmoothedConfidence*decay)
	return &Result{
		SessionID:      e.identity.SessionID,
		State:          StateLostExtended,
		TrackID:        e.identity.TrackID,
		ClassID:        e.identity.ClassID,
		BBox:           e.identity.LastKnownBBox,
		Center:         e.identity.LastKnownCenter,
		Confidence:     confidence,
		Kind:           NoMatch,
		Velocity:       e.velocity(),
		PredictionOnly: true,
		LeftFrame:      e.outOfFrame.LeftFrame,
		ExitEdge:       e.outOfFrame.ExitEdge,
	}
}

// declareLoss ends the session with a LossReport
func (e *Engine) declareLoss(in frameInput) *Result {
	predicted := e.identity.LastKnownBBox
	if e.predictor != nil {
		if state, ok := e.predictor.GetState(); ok {
			predicted = state
		}
	}
	report := LossReport{
		SessionID:        e.identity.SessionID,
		TrackID:          e.identity.TrackID,
		ClassID:          e.identity.ClassID,
		Reason:           e.lossReason(in),
		LastSeenBBox:     e.identity.ConfirmedBBox,
		PredictedBBox:    predicted,
		FramesLost:       e.identity.FramesSinceConfirmed,
		ConfidenceAtLoss: e.identity.SmoothedConfidence,
		ExitEdge:         e.outOfFrame.ExitEdge,
		NeedReselection:  true,
	}
	if e.matcher != nil {
		e.matcher.MarkAsLost(e.identity.TrackID)
	}
	e.stats.Losses++
	e.logger.Infow("target lost",
		"session", report.SessionID,
		"frame", e.frameIndex,
		"track_id", report.TrackID,
		"reason", report.Reason,
		"frames_lost", report.FramesLost,
		"exit_edge", report.ExitEdge,
	)
	e.transition(StateTerminal, string(report.Reason))
	e.lastLoss = &report

	result := &Result{
		SessionID:       report.SessionID,
		State:           StateTerminal,
		TrackID:         report.TrackID,
		ClassID:         report.ClassID,
		BBox:            predicted,
		Center:          predicted.Center(),
		Kind:            NoMatch,
		LeftFrame:       e.outOfFrame.LeftFrame,
		ExitEdge:        e.outOfFrame.ExitEdge,
		NeedReselection: true,
		Loss:            &report,
	}
	e.identity = nil
	e.predictor = nil
	e.tentative = nil
	return result
}

// lossReason infers why the target was lost from the last frame only
func (e *Engine) lossReason(in frameInput) LossReason {
	switch {
	case e.outOfFrame.LeftFrame:
		return LossLeftFrame
	case len(in.valid) > 0:
		return LossOccluded
	case in.raw > 0:
		return LossUnknown
	default:
		return LossDetectorFailure
	}
}

// wellFormed drops malformed detections
func wellFormed(detections []mot.Detection) []mot.Detection {
	valid := make([]mot.Detection, 0, len(detections))
	for _, det := range detections {
		if !det.Valid() {
			continue
		}
		valid = append(valid, det)
	}
	return valid
}

// without returns copy of detections with the i-th one removed
func without(detections []mot.Detection, i int) []mot.Detection {
	if i < 0 || i >= len(detections) {
		return detections
	}
	rest := make([]mot.Detection, 0, len(detections)-1)
	rest = append(rest, detections[:i]...)
	return append(rest, detections[i+1:]...)
}

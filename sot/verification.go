package sot

import (
	"image"

	"github.com/LdDl/sot-go/mot"
)

// Verification rejection reasons
const (
	rejectSizeJump     = "implausible size change"
	rejectWrongEdge    = "candidate far from exit edge"
	rejectNoAppearance = "appearance not confirmed"
)

// verify guards acceptance of a match found after extended loss.
// Returns empty reason when the candidate passes.
func (e *Engine) verify(m Match, frame image.Image) (bool, string) {
	if e.cfg.Verification == VerificationAggressive {
		return true, ""
	}

	candidate := m.Detection.Rect()
	if !e.plausibleSize(candidate) {
		return false, rejectSizeJump
	}
	if e.outOfFrame.LeftFrame && !e.outOfFrame.nearExitEdge(candidate.Center(), e.cfg.EdgeReentryFraction) {
		return false, rejectWrongEdge
	}

	needAppearance := m.Kind == DistanceMatch || (m.Kind == SpatialMatch && m.Lenient)
	if e.cfg.Verification == VerificationStrict && m.Kind != AppearanceMatch {
		needAppearance = true
	}
	if needAppearance && !e.confirmAppearance(m.Detection, frame) {
		return false, rejectNoAppearance
	}
	return true, ""
}

// plausibleSize checks candidate area lies within [locked/ratio, locked*ratio]
func (e *Engine) plausibleSize(candidate mot.Rectangle) bool {
	change := mot.AreaRatio(candidate, e.identity.ConfirmedBBox)
	if change == 0 {
		return e.identity.ConfirmedBBox.Area() == 0
	}
	ratio := e.cfg.MaxAreaChangeRatio
	return change <= ratio && change >= 1/ratio
}

// confirmAppearance checks the candidate looks like the stored target.
// Without a matcher only strict mode fails, since the check cannot be run at all.
func (e *Engine) confirmAppearance(candidate mot.Detection, frame image.Image) bool {
	if e.matcher == nil {
		return e.cfg.Verification != VerificationStrict
	}
	if frame == nil {
		return false
	}
	found, ok := e.matcher.FindBestMatch(frame, []mot.Detection{candidate}, e.identity.ClassID)
	if !ok {
		return false
	}
	return found.Similarity >= e.cfg.AppearanceConfirmThreshold
}

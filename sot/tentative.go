package sot

// needsConfirmation tells whether an accepted re-acquisition must go through the tentative state.
// Re-finding the same track ID commits no identity switch.
func (e *Engine) needsConfirmation(m Match) bool {
	return e.cfg.RequiredConfirmations > 1 && m.Detection.TrackID != e.identity.TrackID
}

// enterTentative opens a candidate. FramesSinceConfirmed keeps counting from its gate-entry value
func (e *Engine) enterTentative(m Match, counted bool) *Result {
	if !counted {
		e.identity.FramesSinceConfirmed++
		e.updateOutOfFrame()
	}
	e.tentative = &TentativeCandidate{
		Detection: m.Detection,
		Hits:      1,
		Required:  e.cfg.RequiredConfirmations,
		Kind:      m.Kind,
		Score:     m.Score,
	}
	e.stats.TentativeStarted++
	e.logger.Infow("re-acquisition candidate opened",
		"session", e.identity.SessionID,
		"frame", e.frameIndex,
		"track_id", e.identity.TrackID,
		"candidate_id", m.Detection.TrackID,
		"kind", m.Kind,
		"frames_lost", e.identity.FramesSinceConfirmed,
	)
	e.transition(StateTentative, "verified candidate after extended loss")
	return e.tentativeResult()
}

// updateTentative runs the tight nearest-candidate search around the candidate only.
// A hit counts towards promotion, a miss discards the candidate.
func (e *Engine) updateTentative(in frameInput) (bool, *Result) {
	candidate := e.tentative
	radius := candidate.Detection.Rect().Diagonal() * e.cfg.TentativeSearchFactor
	hit := matchByDistance(in.valid, candidate.Detection.Center(), radius, e.classes.Compatible)
	if !hit.Found() {
		e.stats.TentativeDiscarded++
		e.logger.Infow("re-acquisition candidate discarded",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"candidate_id", candidate.Detection.TrackID,
			"hits", candidate.Hits,
			"required", candidate.Required,
		)
		e.tentative = nil
		return e.degrade(in, in.valid, false)
	}

	if candidate.Hits+1 < candidate.Required && e.identity.FramesSinceConfirmed+1 > e.lossWindow() {
		// This hit does not promote and the frame would pass the loss window
		e.stats.TentativeDiscarded++
		e.logger.Infow("re-acquisition candidate ran out of loss window",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"candidate_id", candidate.Detection.TrackID,
			"hits", candidate.Hits+1,
			"required", candidate.Required,
		)
		e.tentative = nil
		return e.degrade(in, in.valid, false)
	}

	candidate.Detection = hit.Detection
	candidate.Hits++
	if candidate.Hits >= candidate.Required {
		e.stats.TentativePromoted++
		e.logger.Infow("re-acquisition candidate promoted",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"candidate_id", hit.Detection.TrackID,
			"hits", candidate.Hits,
		)
		promoted := Match{Kind: candidate.Kind, Index: hit.Index, Detection: hit.Detection, Score: candidate.Score}
		return true, e.confirm(promoted, in.frame)
	}
	e.identity.FramesSinceConfirmed++
	e.updateOutOfFrame()
	return true, e.tentativeResult()
}

// tentativeResult reports the candidate with halved confidence
func (e *Engine) tentativeResult() *Result {
	det := e.tentative.Detection
	return &Result{
		SessionID:  e.identity.SessionID,
		State:      StateTentative,
		TrackID:    e.identity.TrackID,
		ClassID:    det.ClassID,
		BBox:       det.Rect(),
		Center:     det.Center(),
		Confidence: det.Confidence * 0.5,
		Kind:       e.tentative.Kind,
		Score:      e.tentative.Score,
		Detection:  &det,
		Velocity:   e.velocity(),
		Tentative:  true,
		LeftFrame:  e.outOfFrame.LeftFrame,
		ExitEdge:   e.outOfFrame.ExitEdge,
	}
}

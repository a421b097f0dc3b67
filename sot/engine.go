// Package sot keeps a single selected target locked across frames of a detector/tracker stream.
//
// Engine consumes per-frame detections, runs the matching hierarchy around the predicted target
// position and degrades through the loss ladder (prediction, lenient re-acquisition, terminal loss)
// when the target disappears. One engine serves one video stream and is not safe for concurrent use.
package sot

import (
	"image"
	"math"

	"github.com/LdDl/sot-go/mot"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Engine tracks one selected target.
type Engine struct {
	cfg          Config
	logger       golog.Logger
	iou          mot.IoUFunc
	newPredictor PredictorFactory
	matcher      AppearanceMatcher

	state      State
	identity   *TrackedIdentity
	predictor  PositionPredictor
	classes    *ClassHistory
	history    *trackingHistory
	tentative  *TentativeCandidate
	outOfFrame OutOfFrameState
	lastLoss   *LossReport
	stats      Stats

	frameIndex      int
	confirmedFrames int
	// needsAppearance forces a feature refresh on the next confirmed frame
	needsAppearance bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPredictorFactory sets how position predictors are created. nil disables prediction
func WithPredictorFactory(factory PredictorFactory) Option {
	return func(e *Engine) {
		e.newPredictor = factory
	}
}

// WithAppearanceMatcher enables appearance matching and confirmation
func WithAppearanceMatcher(matcher AppearanceMatcher) Option {
	return func(e *Engine) {
		e.matcher = matcher
	}
}

// WithIoU replaces the IoU function used by spatial matching
func WithIoU(iou mot.IoUFunc) Option {
	return func(e *Engine) {
		if iou != nil {
			e.iou = iou
		}
	}
}

// WithLogger sets the logger for state transitions
func WithLogger(logger golog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an idle engine
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Can't create tracking engine")
	}
	e := &Engine{
		cfg:          cfg,
		logger:       zap.NewNop().Sugar(),
		iou:          mot.IoU,
		newPredictor: DefaultPredictorFactory,
		state:        StateIdle,
		history:      newTrackingHistory(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StartTracking locks the engine onto the selected detection, replacing any current target
func (e *Engine) StartTracking(trackID, classID int, box image.Rectangle, confidence float64, center mot.Point) error {
	if box.Empty() {
		return errors.Errorf("Can't start tracking: empty bounding box %v", box)
	}
	if math.IsNaN(confidence) {
		return errors.New("Can't start tracking: confidence is NaN")
	}
	frameSize := e.outOfFrame.FrameSize
	e.reset()
	e.outOfFrame.FrameSize = frameSize

	rect := mot.NewRectFrom(box)
	e.identity = &TrackedIdentity{
		SessionID:          uuid.New(),
		TrackID:            trackID,
		ClassID:            classID,
		LastKnownBBox:      rect,
		LastKnownCenter:    center,
		ConfirmedBBox:      rect,
		SmoothedConfidence: clampUnit(confidence),
	}
	e.classes = NewClassHistory(classID, e.cfg.ClassHistorySize, e.cfg.FlexibleClassMatching)
	if e.newPredictor != nil {
		e.predictor = e.newPredictor(rect)
	}
	e.needsAppearance = true
	e.logger.Infow("tracking started",
		"session", e.identity.SessionID,
		"track_id", trackID,
		"class_id", classID,
		"bbox", box,
	)
	e.transition(StateActive, "target selected")
	return nil
}

// Clear drops the current target. Calling it on an idle engine does nothing
func (e *Engine) Clear() {
	if e.identity != nil {
		e.logger.Infow("tracking cleared",
			"session", e.identity.SessionID,
			"track_id", e.identity.TrackID,
			"frame", e.frameIndex,
		)
	}
	e.transition(StateIdle, "cleared")
	e.reset()
}

func (e *Engine) reset() {
	if e.identity != nil && e.matcher != nil {
		e.matcher.MarkAsLost(e.identity.TrackID)
	}
	e.identity = nil
	e.predictor = nil
	e.classes = nil
	e.history = newTrackingHistory(e.cfg.HistorySize)
	e.tentative = nil
	e.outOfFrame = OutOfFrameState{}
	e.lastLoss = nil
	e.stats = Stats{}
	e.frameIndex = 0
	e.confirmedFrames = 0
	e.needsAppearance = false
	e.state = StateIdle
}

// transition moves the engine to the next state, logging every change
func (e *Engine) transition(next State, reason string) {
	if e.state == next {
		return
	}
	fields := []interface{}{
		"from", e.state,
		"to", next,
		"reason", reason,
		"frame", e.frameIndex,
	}
	if e.identity != nil {
		fields = append(fields,
			"session", e.identity.SessionID,
			"frames_lost", e.identity.FramesSinceConfirmed,
		)
	}
	e.logger.Infow("tracking state changed", fields...)
	e.state = next
}

// confirm accepts a match: counters reset, predictor, appearance and history updated
func (e *Engine) confirm(m Match, frame image.Image) *Result {
	det := m.Detection
	rect := det.Rect()
	wasLost := e.identity.FramesSinceConfirmed

	if det.TrackID != e.identity.TrackID {
		e.stats.IDSwitches++
		e.logger.Infow("track ID switched",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"from", e.identity.TrackID,
			"to", det.TrackID,
			"kind", m.Kind,
			"score", m.Score,
		)
		if e.matcher != nil {
			e.matcher.MarkAsLost(e.identity.TrackID)
		}
		e.identity.TrackID = det.TrackID
		e.needsAppearance = true
	}
	if wasLost >= e.cfg.NormalTolerance && wasLost > 0 {
		e.stats.Recoveries++
		e.needsAppearance = true
	}

	alpha := e.cfg.ConfidenceSmoothing
	e.identity.SmoothedConfidence = clampUnit(alpha*e.identity.SmoothedConfidence + (1-alpha)*det.Confidence)
	e.identity.LastKnownBBox = rect
	e.identity.LastKnownCenter = rect.Center()
	e.identity.ConfirmedBBox = rect
	e.identity.FramesSinceConfirmed = 0
	e.outOfFrame.clear()
	e.tentative = nil

	if e.predictor != nil {
		if err := e.predictor.Update(rect); err != nil {
			e.logger.Warnw("predictor update failed",
				"session", e.identity.SessionID,
				"frame", e.frameIndex,
				"error", err,
			)
		}
	}
	e.classes.Add(det.ClassID)
	e.history.add(HistoryEntry{
		Frame:      e.frameIndex,
		TrackID:    det.TrackID,
		ClassID:    det.ClassID,
		BBox:       rect,
		Center:     rect.Center(),
		Confidence: det.Confidence,
		Kind:       m.Kind,
	})
	e.confirmedFrames++
	e.updateAppearance(det, frame)
	e.stats.countMatch(m.Kind)

	reason := "confirmed by " + string(m.Kind) + " match"
	e.transition(StateActive, reason)
	e.logger.Debugw("target confirmed",
		"session", e.identity.SessionID,
		"frame", e.frameIndex,
		"kind", m.Kind,
		"score", m.Score,
		"confidence", e.identity.SmoothedConfidence,
	)

	return &Result{
		SessionID:  e.identity.SessionID,
		State:      StateActive,
		TrackID:    det.TrackID,
		ClassID:    det.ClassID,
		BBox:       rect,
		Center:     rect.Center(),
		Confidence: e.identity.SmoothedConfidence,
		Kind:       m.Kind,
		Score:      m.Score,
		Detection:  &det,
		Velocity:   e.velocity(),
	}
}

// updateAppearance refreshes stored features every AppearanceUpdateInterval confirmed frames
func (e *Engine) updateAppearance(det mot.Detection, frame image.Image) {
	if e.matcher == nil || frame == nil {
		return
	}
	if !e.needsAppearance && e.confirmedFrames%e.cfg.AppearanceUpdateInterval != 0 {
		return
	}
	features, ok := e.matcher.ExtractFeatures(frame, det.Rect())
	if !ok {
		e.logger.Debugw("no appearance features extracted",
			"session", e.identity.SessionID,
			"frame", e.frameIndex,
			"bbox", det.Box,
		)
		return
	}
	e.matcher.RegisterObject(e.identity.TrackID, e.identity.ClassID, features)
	e.needsAppearance = false
}

func (e *Engine) velocity() float64 {
	if e.predictor == nil {
		return 0
	}
	return e.predictor.GetVelocityMagnitude()
}

// SetFrameSize caches frame size for out-of-frame checks when frames are not passed to Update
func (e *Engine) SetFrameSize(width, height int) {
	e.outOfFrame.setFrameSize(image.Pt(width, height))
}

// State returns current state of the engine
func (e *Engine) State() State {
	return e.state
}

// IsTracking reports whether a target is locked
func (e *Engine) IsTracking() bool {
	return e.identity != nil
}

// Identity returns copy of the locked target
func (e *Engine) Identity() (TrackedIdentity, bool) {
	if e.identity == nil {
		return TrackedIdentity{}, false
	}
	return *e.identity, true
}

// Tentative returns copy of the pending re-acquisition candidate
func (e *Engine) Tentative() (TentativeCandidate, bool) {
	if e.tentative == nil {
		return TentativeCandidate{}, false
	}
	return *e.tentative, true
}

// LastLoss returns the report of the last terminal loss of this session
func (e *Engine) LastLoss() (LossReport, bool) {
	if e.lastLoss == nil {
		return LossReport{}, false
	}
	return *e.lastLoss, true
}

// History returns confirmed detections, oldest first
func (e *Engine) History() []HistoryEntry {
	return e.history.snapshot()
}

// ClassHistory returns the class history of the current session. nil when idle
func (e *Engine) ClassHistory() *ClassHistory {
	return e.classes
}

// OutOfFrame returns out-of-frame monitor state
func (e *Engine) OutOfFrame() OutOfFrameState {
	return e.outOfFrame
}

// Stats returns session counters
func (e *Engine) Stats() Stats {
	return e.stats
}

// Config returns engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

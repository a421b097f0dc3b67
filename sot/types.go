package sot

import (
	"image"

	"github.com/LdDl/sot-go/mot"
	"github.com/google/uuid"
)

// State is the rung of the degradation ladder the engine is on.
type State string

const (
	StateIdle                State = "idle"                  // No target selected
	StateActive              State = "active"                // Target confirmed on the last frame
	StateLostWithinTolerance State = "lost_within_tolerance" // Short loss, predictor carries the position
	StateLostExtended        State = "lost_extended"         // Long loss, lenient search and prediction only
	StateTentative           State = "tentative"             // Re-acquisition candidate awaits confirmation
	StateTerminal            State = "terminal"              // Target lost, caller must re-select
)

// MatchKind tags the strategy that produced a match.
type MatchKind string

const (
	NoMatch         MatchKind = "none"
	IDMatch         MatchKind = "id"
	SpatialMatch    MatchKind = "spatial"
	DistanceMatch   MatchKind = "distance"
	AppearanceMatch MatchKind = "appearance"
)

// Edge is the frame border the target left through.
type Edge string

const (
	EdgeNone   Edge = ""
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// LossReason explains why tracking was given up.
type LossReason string

const (
	LossLeftFrame       LossReason = "left_frame"
	LossDetectorFailure LossReason = "detector_failure"
	LossOccluded        LossReason = "occluded"
	LossUnknown         LossReason = "unknown"
)

// TrackedIdentity is the single locked target.
type TrackedIdentity struct {
	// SessionID is generated on every StartTracking call
	SessionID uuid.UUID
	// TrackID of the upstream tracker. Changes on identity switches
	TrackID int
	// ClassID the target was locked with
	ClassID int
	// LastKnownBBox follows the predictor while the target is lost
	LastKnownBBox   mot.Rectangle
	LastKnownCenter mot.Point
	// ConfirmedBBox is the box of the last confirmed detection
	ConfirmedBBox mot.Rectangle
	// SmoothedConfidence is an EMA of confirmed detection confidences
	SmoothedConfidence float64
	// FramesSinceConfirmed is reset to 0 on every accepted match
	FramesSinceConfirmed int
}

// TentativeCandidate is a re-acquisition candidate which is not trusted yet.
type TentativeCandidate struct {
	Detection mot.Detection
	// Hits is the number of consecutive frames the candidate was seen
	Hits     int
	Required int
	// Kind and Score of the match that opened the candidate
	Kind  MatchKind
	Score float64
}

// OutOfFrameState tells whether the predicted target position left the frame.
type OutOfFrameState struct {
	LeftFrame bool
	ExitEdge  Edge
	// FrameSize is the cached frame size, zero until the first frame is seen
	FrameSize image.Point
}

// LossReport is emitted once all loss tolerance is exhausted.
type LossReport struct {
	SessionID        uuid.UUID
	TrackID          int
	ClassID          int
	Reason           LossReason
	LastSeenBBox     mot.Rectangle
	PredictedBBox    mot.Rectangle
	FramesLost       int
	ConfidenceAtLoss float64
	ExitEdge         Edge
	NeedReselection  bool
}

// HistoryEntry is a confirmed detection kept for diagnostics and replay.
type HistoryEntry struct {
	Frame      int
	TrackID    int
	ClassID    int
	BBox       mot.Rectangle
	Center     mot.Point
	Confidence float64
	Kind       MatchKind
}

// Result is the per-frame engine output.
type Result struct {
	SessionID  uuid.UUID
	State      State
	TrackID    int
	ClassID    int
	BBox       mot.Rectangle
	Center     mot.Point
	Confidence float64
	// Kind and Score of the match behind this result. NoMatch for predictions
	Kind  MatchKind
	Score float64
	// Detection is the matched detection, nil when the result carries no detection payload
	Detection *mot.Detection
	// Velocity is the predictor speed estimate in pixels per frame
	Velocity        float64
	Tentative       bool
	PredictionOnly  bool
	LeftFrame       bool
	ExitEdge        Edge
	NeedReselection bool
	Loss            *LossReport
}

// Stats are cumulative counters of one tracking session.
type Stats struct {
	Frames             int
	Confirmed          int
	IDMatches          int
	SpatialMatches     int
	DistanceMatches    int
	AppearanceMatches  int
	IDSwitches         int
	Recoveries         int
	GateRejections     int
	TentativeStarted   int
	TentativePromoted  int
	TentativeDiscarded int
	Losses             int
}

func (stats *Stats) countMatch(kind MatchKind) {
	stats.Confirmed++
	switch kind {
	case IDMatch:
		stats.IDMatches++
	case SpatialMatch:
		stats.SpatialMatches++
	case DistanceMatch:
		stats.DistanceMatches++
	case AppearanceMatch:
		stats.AppearanceMatches++
	}
}

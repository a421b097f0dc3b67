package sot

import (
	"image"

	"github.com/LdDl/sot-go/mot"
)

// setFrameSize caches the frame size used for out-of-frame checks
func (state *OutOfFrameState) setFrameSize(size image.Point) {
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	state.FrameSize = size
}

// update tests the predicted center against the frame extended by margin.
// The first crossed edge sticks until clear. Returns true when the target has just left.
func (state *OutOfFrameState) update(center mot.Point, margin float64) bool {
	if state.LeftFrame || state.FrameSize.X == 0 || state.FrameSize.Y == 0 {
		return false
	}
	width := float64(state.FrameSize.X)
	height := float64(state.FrameSize.Y)
	edge := EdgeNone
	switch {
	case center.X < -margin:
		edge = EdgeLeft
	case center.X > width+margin:
		edge = EdgeRight
	case center.Y < -margin:
		edge = EdgeTop
	case center.Y > height+margin:
		edge = EdgeBottom
	}
	if edge == EdgeNone {
		return false
	}
	state.LeftFrame = true
	state.ExitEdge = edge
	return true
}

// nearExitEdge reports whether point lies within fraction of the frame next to the exit edge.
// Unknown frame size or edge does not restrict anything.
func (state *OutOfFrameState) nearExitEdge(point mot.Point, fraction float64) bool {
	if state.FrameSize.X == 0 || state.FrameSize.Y == 0 {
		return true
	}
	width := float64(state.FrameSize.X)
	height := float64(state.FrameSize.Y)
	switch state.ExitEdge {
	case EdgeLeft:
		return point.X <= width*fraction
	case EdgeRight:
		return point.X >= width*(1-fraction)
	case EdgeTop:
		return point.Y <= height*fraction
	case EdgeBottom:
		return point.Y >= height*(1-fraction)
	default:
		return true
	}
}

func (state *OutOfFrameState) clear() {
	state.LeftFrame = false
	state.ExitEdge = EdgeNone
}

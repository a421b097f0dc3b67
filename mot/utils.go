package mot

// IoUFunc is the signature of a box-overlap function. Result must be in [0, 1].
type IoUFunc func(r1, r2 Rectangle) float64

// IoU calculates Intersection over Union between two rectangles.
// Returns zero for degenerate (non-positive size) rectangles.
func IoU(r1, r2 Rectangle) float64 {
	xA := maxFloat64(r1.X, r2.X)
	yA := maxFloat64(r1.Y, r2.Y)
	xB := minFloat64(r1.X+r1.Width, r2.X+r2.Width)
	yB := minFloat64(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	unionArea := r1.Area() + r2.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}

// AreaRatio returns a/b area ratio of two rectangles or zero when b is degenerate
func AreaRatio(a, b Rectangle) float64 {
	bArea := b.Area()
	if bArea == 0 {
		return 0
	}
	return a.Area() / bArea
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

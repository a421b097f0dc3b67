package mot

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
	if Distance(p1, p2) != answer {
		t.Errorf("Distance should match euclideanDistance")
	}
}

func TestRectangleFromCorners(t *testing.T) {
	rect := NewRectXYXY(100, 100, 150, 150)
	if rect != NewRect(100, 100, 50, 50) {
		t.Errorf("Unexpected rectangle %v", rect)
	}
	fromImage := NewRectFrom(image.Rect(100, 100, 150, 150))
	if fromImage != rect {
		t.Errorf("Expected %v, got %v", rect, fromImage)
	}
	if rect.Image() != image.Rect(100, 100, 150, 150) {
		t.Errorf("Round trip to image.Rectangle failed: %v", rect.Image())
	}
}

func TestRectangleMeasures(t *testing.T) {
	rect := NewRect(10, 20, 30, 40)
	if rect.Center() != (Point{X: 25, Y: 40}) {
		t.Errorf("Wrong center %v", rect.Center())
	}
	if rect.Area() != 1200 {
		t.Errorf("Wrong area %f", rect.Area())
	}
	if math.Abs(rect.Diagonal()-50) > eps {
		t.Errorf("Wrong diagonal %f", rect.Diagonal())
	}
	if NewRect(0, 0, -5, 10).Area() != 0 {
		t.Error("Degenerate rectangle should have zero area")
	}
}

func TestRectangleExpand(t *testing.T) {
	rect := NewRect(10, 20, 30, 40)
	expanded := rect.Expand(2.0)
	if expanded.Center() != rect.Center() {
		t.Errorf("Expansion should keep center: %v vs %v", expanded.Center(), rect.Center())
	}
	if expanded.Width != 60 || expanded.Height != 80 {
		t.Errorf("Wrong expanded size %fx%f", expanded.Width, expanded.Height)
	}
}

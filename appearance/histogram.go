// Package appearance provides a lightweight appearance matcher for re-identifying
// a lost target by its colour distribution.
//
// Features are joint RGB histograms of the upper and lower halves of the target
// patch, L2-normalised, so cosine similarity reduces to a dot product.
package appearance

import (
	"image"
	"sync"

	"github.com/LdDl/sot-go/mot"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
)

// Config holds histogram matcher parameters.
type Config struct {
	// Histogram bins per colour channel
	Bins int
	// Size the target patch is scaled to before histogramming
	PatchWidth  int
	PatchHeight int
	// Minimum cosine similarity to report a match
	MatchThreshold float64
	// EMA weight of stored features when a new observation is registered, [0,1)
	FeatureSmoothing float64
	// Frames a lost object's features are kept before eviction
	LostTTL int
}

// DefaultConfig returns matcher parameters tuned for small aerial targets
func DefaultConfig() Config {
	return Config{
		Bins:             8,
		PatchWidth:       32,
		PatchHeight:      64,
		MatchThreshold:   0.7,
		FeatureSmoothing: 0.7,
		LostTTL:          300,
	}
}

// Validate checks matcher parameters
func (cfg Config) Validate() error {
	if cfg.Bins < 2 || cfg.Bins > 64 {
		return errors.Errorf("bins must be in [2, 64], got %d", cfg.Bins)
	}
	if cfg.PatchWidth <= 0 || cfg.PatchHeight < 2 {
		return errors.Errorf("invalid patch size %dx%d", cfg.PatchWidth, cfg.PatchHeight)
	}
	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 1 {
		return errors.Errorf("match threshold must be in [0, 1], got %f", cfg.MatchThreshold)
	}
	if cfg.FeatureSmoothing < 0 || cfg.FeatureSmoothing >= 1 {
		return errors.Errorf("feature smoothing must be in [0, 1), got %f", cfg.FeatureSmoothing)
	}
	if cfg.LostTTL < 0 {
		return errors.Errorf("lost TTL must be non-negative, got %d", cfg.LostTTL)
	}
	return nil
}

type storedObject struct {
	classID    int
	features   []float64
	lastUpdate int
	lost       bool
	lostAt     int
}

// HistogramMatcher stores colour-histogram features per track ID and finds the
// candidate detection that looks most like the latest registered object.
type HistogramMatcher struct {
	mu      sync.Mutex
	cfg     Config
	objects map[int]*storedObject
	frame   int
	// Registration counter, orders stored objects by recency
	seq int
}

// NewHistogramMatcher creates matcher with the given configuration
func NewHistogramMatcher(cfg Config) (*HistogramMatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Can't create histogram matcher")
	}
	return &HistogramMatcher{
		cfg:     cfg,
		objects: make(map[int]*storedObject),
	}, nil
}

// NewDefaultHistogramMatcher creates matcher with DefaultConfig
func NewDefaultHistogramMatcher() *HistogramMatcher {
	return &HistogramMatcher{
		cfg:     DefaultConfig(),
		objects: make(map[int]*storedObject),
	}
}

// ExtractFeatures computes the feature vector of the frame region under box.
// Returns false when the box does not intersect the frame or the patch is empty.
func (m *HistogramMatcher) ExtractFeatures(frame image.Image, box mot.Rectangle) ([]float64, bool) {
	if frame == nil {
		return nil, false
	}
	region := box.Image().Intersect(frame.Bounds())
	if region.Empty() {
		return nil, false
	}

	patch := image.NewRGBA(image.Rect(0, 0, m.cfg.PatchWidth, m.cfg.PatchHeight))
	draw.ApproxBiLinear.Scale(patch, patch.Bounds(), frame, region, draw.Src, nil)

	bins := m.cfg.Bins
	perHalf := bins * bins * bins
	hist := make([]float64, 2*perHalf)
	half := m.cfg.PatchHeight / 2
	for y := 0; y < m.cfg.PatchHeight; y++ {
		offset := 0
		if y >= half {
			offset = perHalf
		}
		row := patch.Pix[y*patch.Stride : y*patch.Stride+4*m.cfg.PatchWidth]
		for x := 0; x < len(row); x += 4 {
			r := int(row[x]) * bins / 256
			g := int(row[x+1]) * bins / 256
			b := int(row[x+2]) * bins / 256
			hist[offset+(r*bins+g)*bins+b]++
		}
	}

	norm := floats.Norm(hist, 2)
	if norm == 0 {
		return nil, false
	}
	floats.Scale(1/norm, hist)
	return hist, true
}

// Similarity returns cosine similarity of two L2-normalised feature vectors
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b)
}

// FindBestMatch compares candidates against the most recently registered object of the class.
// Objects marked as lost are never used as reference.
// Returns the most similar candidate when its similarity reaches the match threshold.
func (m *HistogramMatcher) FindBestMatch(frame image.Image, candidates []mot.Detection, classID int) (mot.AppearanceMatch, bool) {
	m.mu.Lock()
	target := m.latestOfClass(classID)
	var reference []float64
	if target != nil {
		reference = target.features
	}
	m.mu.Unlock()
	if reference == nil {
		return mot.AppearanceMatch{}, false
	}

	best := mot.AppearanceMatch{Index: -1}
	for i, candidate := range candidates {
		features, ok := m.ExtractFeatures(frame, candidate.Rect())
		if !ok {
			continue
		}
		similarity := Similarity(reference, features)
		if best.Index < 0 || similarity > best.Similarity {
			best = mot.AppearanceMatch{
				Index:      i,
				Detection:  candidate,
				Similarity: similarity,
			}
		}
	}
	if best.Index < 0 || best.Similarity < m.cfg.MatchThreshold {
		return mot.AppearanceMatch{}, false
	}
	return best, true
}

// RegisterObject stores features for the track ID, blending them with features already stored.
// Registering a lost object revives it.
func (m *HistogramMatcher) RegisterObject(trackID, classID int, features []float64) {
	if len(features) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++

	stored, ok := m.objects[trackID]
	if !ok || len(stored.features) != len(features) {
		m.objects[trackID] = &storedObject{
			classID:    classID,
			features:   append([]float64(nil), features...),
			lastUpdate: m.seq,
		}
		return
	}

	blended := make([]float64, len(features))
	floats.ScaleTo(blended, m.cfg.FeatureSmoothing, stored.features)
	floats.AddScaled(blended, 1-m.cfg.FeatureSmoothing, features)
	if norm := floats.Norm(blended, 2); norm > 0 {
		floats.Scale(1/norm, blended)
	}
	stored.features = blended
	stored.classID = classID
	stored.lastUpdate = m.seq
	stored.lost = false
}

// MarkAsLost flags stored features as stale. They are evicted after LostTTL frames
func (m *HistogramMatcher) MarkAsLost(trackID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.objects[trackID]
	if !ok || stored.lost {
		return
	}
	stored.lost = true
	stored.lostAt = m.frame
}

// IncrementFrame advances the matcher clock and evicts expired lost objects
func (m *HistogramMatcher) IncrementFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame++
	for trackID, stored := range m.objects {
		if stored.lost && m.frame-stored.lostAt > m.cfg.LostTTL {
			delete(m.objects, trackID)
		}
	}
}

// Len returns number of stored objects
func (m *HistogramMatcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// IsLost reports whether stored features of the track ID are marked as lost
func (m *HistogramMatcher) IsLost(trackID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.objects[trackID]
	return ok && stored.lost
}

func (m *HistogramMatcher) latestOfClass(classID int) *storedObject {
	var latest *storedObject
	for _, stored := range m.objects {
		if stored.lost || stored.classID != classID {
			continue
		}
		if latest == nil || stored.lastUpdate > latest.lastUpdate {
			latest = stored
		}
	}
	return latest
}

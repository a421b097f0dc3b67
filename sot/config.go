package sot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MatchingMode selects which strategies of the matching hierarchy run.
type MatchingMode string

const (
	// MatchingHybrid runs ID, spatial, distance and appearance matching in order
	MatchingHybrid MatchingMode = "hybrid"
	// MatchingIDOnly trusts upstream track IDs only
	MatchingIDOnly MatchingMode = "id_only"
	// MatchingSpatialOnly ignores track IDs and matches by box overlap only
	MatchingSpatialOnly MatchingMode = "spatial_only"
)

// VerificationMode is the strictness of the re-acquisition verification gate.
type VerificationMode string

const (
	// VerificationAggressive accepts any re-acquisition candidate
	VerificationAggressive VerificationMode = "aggressive"
	// VerificationBalanced rejects size jumps and wrong-edge re-entries and
	// requires appearance confirmation for the weakest match kinds
	VerificationBalanced VerificationMode = "balanced"
	// VerificationStrict is balanced plus appearance confirmation for every re-acquisition
	VerificationStrict VerificationMode = "strict"
)

// Config holds engine parameters. It is resolved once and validated by New.
type Config struct {
	Matching MatchingMode `json:"matching_mode"`

	// Spatial matching
	IoUThreshold    float64 `json:"iou_threshold"`     // Minimum IoU for a spatial match
	LenientIoUScale float64 `json:"lenient_iou_scale"` // IoU threshold multiplier in the extended window
	MinLenientIoU   float64 `json:"min_lenient_iou"`   // Floor of the lenient IoU threshold

	// Search expansion of the reference box while the target is lost
	EnableSearchExpansion bool    `json:"enable_search_expansion"`
	SearchExpansionRate   float64 `json:"search_expansion_rate"` // Growth per lost frame
	MaxSearchExpansion    float64 `json:"max_search_expansion"`  // Cap of the growth term

	// Distance matching: radius = diagonal * DistanceFactor * (1 + framesLost * DistanceExpansionRate)
	DistanceFactor        float64 `json:"distance_factor"`
	DistanceExpansionRate float64 `json:"distance_expansion_rate"`

	// Appearance matching
	AppearanceGateFactor       float64 `json:"appearance_gate_factor"`       // Gate radius in reference diagonals
	AppearanceConfirmThreshold float64 `json:"appearance_confirm_threshold"` // Similarity needed to confirm identity
	AppearanceUpdateInterval   int     `json:"appearance_update_interval"`   // Confirmed frames between feature updates

	// Class handling
	FlexibleClassMatching bool `json:"flexible_class_matching"`
	ClassHistorySize      int  `json:"class_history_size"`

	// Bookkeeping
	HistorySize         int     `json:"history_size"`
	ConfidenceSmoothing float64 `json:"confidence_smoothing"` // EMA weight of the previous confidence

	// Degradation ladder
	NormalTolerance           int     `json:"normal_tolerance"`   // Frames lost before re-acquisition is verified
	ExtendedTolerance         int     `json:"extended_tolerance"` // Extra frames of lenient search and prediction
	PredictionConfidenceFloor float64 `json:"prediction_confidence_floor"`

	// Verification gate
	Verification        VerificationMode `json:"verification_mode"`
	MaxAreaChangeRatio  float64          `json:"max_area_change_ratio"`
	EdgeReentryFraction float64          `json:"edge_reentry_fraction"` // Share of the frame next to the exit edge

	// Tentative confirmation
	RequiredConfirmations int     `json:"required_confirmations"` // 1 disables the tentative state
	TentativeSearchFactor float64 `json:"tentative_search_factor"`

	// Out-of-frame monitor
	OutOfFrameMargin float64 `json:"out_of_frame_margin"` // Pixels beyond the frame border
}

// DefaultConfig returns engine defaults
func DefaultConfig() Config {
	return Config{
		Matching:                   MatchingHybrid,
		IoUThreshold:               0.35,
		LenientIoUScale:            0.5,
		MinLenientIoU:              0.1,
		EnableSearchExpansion:      true,
		SearchExpansionRate:        0.1,
		MaxSearchExpansion:         1.0,
		DistanceFactor:             1.0,
		DistanceExpansionRate:      0.1,
		AppearanceGateFactor:       3.0,
		AppearanceConfirmThreshold: 0.7,
		AppearanceUpdateInterval:   5,
		FlexibleClassMatching:      true,
		ClassHistorySize:           5,
		HistorySize:                30,
		ConfidenceSmoothing:        0.8,
		NormalTolerance:            5,
		ExtendedTolerance:          30,
		PredictionConfidenceFloor:  0.1,
		Verification:               VerificationBalanced,
		MaxAreaChangeRatio:         3.0,
		EdgeReentryFraction:        0.25,
		RequiredConfirmations:      3,
		TentativeSearchFactor:      1.5,
		OutOfFrameMargin:           20,
	}
}

// Validate checks parameter ranges
func (cfg Config) Validate() error {
	switch cfg.Matching {
	case MatchingHybrid, MatchingIDOnly, MatchingSpatialOnly:
	default:
		return errors.Errorf("unknown matching mode %q", cfg.Matching)
	}
	switch cfg.Verification {
	case VerificationAggressive, VerificationBalanced, VerificationStrict:
	default:
		return errors.Errorf("unknown verification mode %q", cfg.Verification)
	}
	if err := unitRange("iou_threshold", cfg.IoUThreshold); err != nil {
		return err
	}
	if err := unitRange("lenient_iou_scale", cfg.LenientIoUScale); err != nil {
		return err
	}
	if err := unitRange("min_lenient_iou", cfg.MinLenientIoU); err != nil {
		return err
	}
	if err := unitRange("appearance_confirm_threshold", cfg.AppearanceConfirmThreshold); err != nil {
		return err
	}
	if err := unitRange("prediction_confidence_floor", cfg.PredictionConfidenceFloor); err != nil {
		return err
	}
	if err := unitRange("edge_reentry_fraction", cfg.EdgeReentryFraction); err != nil {
		return err
	}
	if cfg.ConfidenceSmoothing < 0 || cfg.ConfidenceSmoothing >= 1 {
		return errors.Errorf("confidence_smoothing must be in [0, 1), got %f", cfg.ConfidenceSmoothing)
	}
	if cfg.SearchExpansionRate < 0 || cfg.MaxSearchExpansion < 0 || cfg.DistanceExpansionRate < 0 {
		return errors.New("expansion rates must be non-negative")
	}
	if cfg.DistanceFactor <= 0 || cfg.AppearanceGateFactor <= 0 || cfg.TentativeSearchFactor <= 0 {
		return errors.New("search radius factors must be positive")
	}
	if cfg.NormalTolerance < 0 || cfg.ExtendedTolerance < 0 {
		return errors.Errorf("tolerances must be non-negative, got normal=%d extended=%d", cfg.NormalTolerance, cfg.ExtendedTolerance)
	}
	if cfg.MaxAreaChangeRatio < 1 {
		return errors.Errorf("max_area_change_ratio must be >= 1, got %f", cfg.MaxAreaChangeRatio)
	}
	if cfg.RequiredConfirmations < 1 {
		return errors.Errorf("required_confirmations must be >= 1, got %d", cfg.RequiredConfirmations)
	}
	if cfg.ClassHistorySize < 1 || cfg.HistorySize < 1 {
		return errors.New("history sizes must be positive")
	}
	if cfg.AppearanceUpdateInterval < 1 {
		return errors.Errorf("appearance_update_interval must be >= 1, got %d", cfg.AppearanceUpdateInterval)
	}
	if cfg.OutOfFrameMargin < 0 {
		return errors.Errorf("out_of_frame_margin must be non-negative, got %f", cfg.OutOfFrameMargin)
	}
	return nil
}

func unitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("%s must be in [0, 1], got %f", name, v)
	}
	return nil
}

// lenientIoUThreshold returns IoU threshold used in the extended loss window
func (cfg Config) lenientIoUThreshold() float64 {
	threshold := cfg.IoUThreshold * cfg.LenientIoUScale
	if threshold < cfg.MinLenientIoU {
		return cfg.MinLenientIoU
	}
	return threshold
}

// maxConfigFileSize limits config files read by LoadConfig
const maxConfigFileSize = 1 * 1024 * 1024

// LoadConfig reads a JSON file on top of DefaultConfig.
// Fields omitted from the file keep their default values, so partial configs are safe.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, errors.Errorf("Can't load config: file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "Can't stat config file")
	}
	if fileInfo.Size() > maxConfigFileSize {
		return cfg, errors.Errorf("Can't load config: file too large, %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "Can't read config file")
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "Can't parse config file %s", cleanPath)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "Can't accept invalid config file %s", cleanPath)
	}
	return cfg, nil
}

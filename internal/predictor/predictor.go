// Package predictor loads model artifacts and scores frames with them.
package predictor

import (
	"context"
	"fmt"
	"os"
	"strings"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/frame"
)

// Supported artifact formats.
const (
	FormatPMMLRandomForest = "pmml-random-forest"
	FormatPMMLGBM          = "pmml-gbm"
	FormatLightGBM         = "lightgbm"
)

const (
	DefaultThreshold     = 0.5
	DefaultPositiveLabel = "1"
	DefaultNegativeLabel = "0"
)

// Predictor maps every row of a frame to one label, in row order.
type Predictor interface {
	Predict(ctx context.Context, f *frame.Frame) ([]interface{}, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, f *frame.Frame) ([]interface{}, error)

func (fn PredictorFunc) Predict(ctx context.Context, f *frame.Frame) ([]interface{}, error) {
	return fn(ctx, f)
}

// Spec identifies an artifact on disk and how to interpret its output.
type Spec struct {
	Name          string
	Version       string
	Format        string
	Path          string
	Features      []string
	Threshold     float64
	PositiveLabel string
	NegativeLabel string
}

func (s Spec) threshold() float64 {
	if s.Threshold <= 0 || s.Threshold >= 1 {
		return DefaultThreshold
	}
	return s.Threshold
}

func (s Spec) positive() string {
	if s.PositiveLabel == "" {
		return DefaultPositiveLabel
	}
	return s.PositiveLabel
}

func (s Spec) negative() string {
	if s.NegativeLabel == "" {
		return DefaultNegativeLabel
	}
	return s.NegativeLabel
}

// Loader turns a Spec into a ready Predictor.
type Loader interface {
	Load(ctx context.Context, spec Spec) (Predictor, error)
}

// FileLoader reads artifacts from the local filesystem.
type FileLoader struct{}

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load dispatches on spec.Format. Errors are MODEL_LOAD_FAILED.
func (l *FileLoader) Load(ctx context.Context, spec Spec) (Predictor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}

	switch strings.ToLower(spec.Format) {
	case FormatPMMLRandomForest, "pmml":
		return loadRandomForest(spec)
	case FormatPMMLGBM:
		return loadGradientBoosted(spec)
	case FormatLightGBM:
		return loadLightGBM(spec)
	default:
		return nil, apperrors.NewModelLoadFailedError(spec.Path,
			fmt.Errorf("unsupported model format %q", spec.Format))
	}
}

// rowError tags a per-row failure so callers can report which row failed.
func rowError(row int, err error) error {
	return apperrors.NewPredictionFailedError(row, err)
}

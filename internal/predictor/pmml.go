package predictor

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/asafschers/goscore"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/frame"
)

type randomForest struct {
	model goscore.RandomForest
}

func loadRandomForest(spec Spec) (Predictor, error) {
	data, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}
	var model goscore.RandomForest
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}
	return &randomForest{model: model}, nil
}

// Predict takes the majority vote of the forest for every row.
func (p *randomForest) Predict(ctx context.Context, f *frame.Frame) ([]interface{}, error) {
	out := make([]interface{}, f.Len())
	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := p.model.LabelScores(f.Record(i))
		if err != nil {
			return nil, rowError(i, err)
		}
		label, ok := topLabel(scores)
		if !ok {
			return nil, rowError(i, fmt.Errorf("forest produced no votes"))
		}
		out[i] = NormalizeLabel(label)
	}
	return out, nil
}

type gradientBoosted struct {
	model goscore.GradientBoostedModel
	spec  Spec
}

func loadGradientBoosted(spec Spec) (Predictor, error) {
	data, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}
	var model goscore.GradientBoostedModel
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}
	return &gradientBoosted{model: model, spec: spec}, nil
}

// Predict thresholds the positive-class probability of every row.
func (p *gradientBoosted) Predict(ctx context.Context, f *frame.Frame) ([]interface{}, error) {
	out := make([]interface{}, f.Len())
	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prob, err := p.model.Score(f.Record(i))
		if err != nil {
			return nil, rowError(i, err)
		}
		out[i] = thresholdLabel(prob, p.spec)
	}
	return out, nil
}

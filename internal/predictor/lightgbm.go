package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/frame"
)

type lightGBM struct {
	predictor *lightgbm.Predictor
	spec      Spec
}

func loadLightGBM(spec Spec) (Predictor, error) {
	model, err := lightgbm.LoadFromFile(spec.Path)
	if err != nil {
		return nil, apperrors.NewModelLoadFailedError(spec.Path, err)
	}
	p := lightgbm.NewPredictor(model)
	p.SetDeterministic(true)
	return &lightGBM{predictor: p, spec: spec}, nil
}

// Predict builds a dense feature matrix in spec.Features order (frame order
// when unset). Missing cells are NaN; text cells fail the row.
func (p *lightGBM) Predict(ctx context.Context, f *frame.Frame) ([]interface{}, error) {
	if f.Len() == 0 {
		return []interface{}{}, nil
	}
	features := p.spec.Features
	if len(features) == 0 {
		features = f.Columns()
	}

	X, err := denseMatrix(f, features)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pred, err := p.predictor.Predict(X)
	if err != nil {
		return nil, apperrors.NewPredictionFailedError(-1, err)
	}

	if rows, _ := pred.Dims(); rows != f.Len() {
		return nil, apperrors.NewPredictionFailedError(-1,
			fmt.Errorf("model returned %d predictions for %d rows", rows, f.Len()))
	}
	return matrixLabels(pred, p.spec), nil
}

// matrixLabels thresholds a single score column and takes the argmax of
// per-class columns.
func matrixLabels(pred mat.Matrix, spec Spec) []interface{} {
	rows, cols := pred.Dims()
	out := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		if cols == 1 {
			out[i] = thresholdLabel(pred.At(i, 0), spec)
			continue
		}
		best := 0
		for c := 1; c < cols; c++ {
			if pred.At(i, c) > pred.At(i, best) {
				best = c
			}
		}
		out[i] = int64(best)
	}
	return out
}

func denseMatrix(f *frame.Frame, features []string) (*mat.Dense, error) {
	X := mat.NewDense(f.Len(), len(features), nil)
	for i := 0; i < f.Len(); i++ {
		for j, name := range features {
			raw, ok := f.Value(i, name)
			if !ok {
				return nil, apperrors.NewMissingColumnError(name)
			}
			switch v := frame.Infer(raw).(type) {
			case nil:
				X.Set(i, j, math.NaN())
			case float64:
				X.Set(i, j, v)
			case int:
				X.Set(i, j, float64(v))
			case int64:
				X.Set(i, j, float64(v))
			case bool:
				if v {
					X.Set(i, j, 1)
				} else {
					X.Set(i, j, 0)
				}
			default:
				return nil, rowError(i, fmt.Errorf("feature %q is not numeric: %v", name, v))
			}
		}
	}
	return X, nil
}

package predictor

import (
	"math"
	"sort"
	"strconv"
)

// NormalizeLabel emits numeric labels as numbers and everything else as
// strings. Integral values become int64 so they encode without a fraction.
func NormalizeLabel(label string) interface{} {
	n, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return label
	}
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n)
	}
	return n
}

// thresholdLabel maps a positive-class probability to a label.
func thresholdLabel(p float64, spec Spec) interface{} {
	if p >= spec.threshold() {
		return NormalizeLabel(spec.positive())
	}
	return NormalizeLabel(spec.negative())
}

// topLabel returns the label with the highest score. Ties go to the
// lexically smallest label so results are stable across runs.
func topLabel(scores map[string]float64) (string, bool) {
	if len(scores) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, l := range labels[1:] {
		if scores[l] > scores[best] {
			best = l
		}
	}
	return best, true
}

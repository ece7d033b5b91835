package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveScoring(t *testing.T) {
	okBefore := testutil.ToFloat64(ScoringRequests.WithLabelValues("test", "succeeded"))
	rowsBefore := testutil.ToFloat64(ScoredRows.WithLabelValues("test"))
	errBefore := testutil.ToFloat64(ScoringErrors.WithLabelValues("test", "PARSE_ERROR"))

	ObserveScoring("test", "", 3, 10*time.Millisecond)
	ObserveScoring("test", "PARSE_ERROR", 0, time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ScoringRequests.WithLabelValues("test", "succeeded")))
	assert.Equal(t, rowsBefore+3, testutil.ToFloat64(ScoredRows.WithLabelValues("test")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(ScoringErrors.WithLabelValues("test", "PARSE_ERROR")))
}

func TestObserveCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	ObserveCache(true)
	ObserveCache(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("hit")))
}

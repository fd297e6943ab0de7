package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.Equal(t, 9.75, mean([]float64{8, 10, 12, 9}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 1.2, median([]float64{1.1, 1.2, 1.3}))
	assert.Equal(t, 1.25, median([]float64{1.3, 1.2, 1.1, 1.4}))
	// Robust to a single bad tick
	assert.Equal(t, 1.2, median([]float64{1.2, 9.9, 1.2}))
}

func TestPercentile(t *testing.T) {
	values := []float64{8, 10, 12, 9}

	assert.InDelta(t, 8.15, percentile(values, 5), 1e-9)
	assert.InDelta(t, 11.7, percentile(values, 95), 1e-9)
	assert.Equal(t, 8.0, percentile(values, 0))
	assert.Equal(t, 12.0, percentile(values, 100))
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 95))
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []float64{12, 8, 10, 9}
	percentile(values, 50)
	assert.Equal(t, []float64{12, 8, 10, 9}, values)
}

package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuousPercentile(t *testing.T) {
	t.Run("empty slice returns zero", func(t *testing.T) {
		assert.Zero(t, continuousPercentile(nil, 0.5))
	})

	t.Run("single element is every percentile", func(t *testing.T) {
		sorted := []float64{420000}
		assert.Equal(t, 420000.0, continuousPercentile(sorted, 0.25))
		assert.Equal(t, 420000.0, continuousPercentile(sorted, 0.50))
		assert.Equal(t, 420000.0, continuousPercentile(sorted, 0.75))
	})

	t.Run("interpolates between ranks", func(t *testing.T) {
		sorted := []float64{100, 200, 300, 400}
		// rank = 0.5*3 = 1.5, середина между вторым и третьим элементом
		assert.InDelta(t, 250, continuousPercentile(sorted, 0.50), 1e-9)
		// rank = 0.25*3 = 0.75
		assert.InDelta(t, 175, continuousPercentile(sorted, 0.25), 1e-9)
	})

	t.Run("p100 returns the maximum", func(t *testing.T) {
		sorted := []float64{1, 2, 3}
		assert.Equal(t, 3.0, continuousPercentile(sorted, 1.0))
	})
}

func TestPercentileTriple(t *testing.T) {
	t.Run("three market values", func(t *testing.T) {
		p25, median, p75 := percentileTriple([]float64{400000, 500000, 650000})

		assert.InDelta(t, 450000, p25, 1e-9)
		assert.InDelta(t, 500000, median, 1e-9)
		assert.InDelta(t, 575000, p75, 1e-9)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		p25, median, p75 := percentileTriple([]float64{650000, 400000, 500000})

		assert.InDelta(t, 450000, p25, 1e-9)
		assert.InDelta(t, 500000, median, 1e-9)
		assert.InDelta(t, 575000, p75, 1e-9)
	})

	t.Run("does not reorder the caller slice", func(t *testing.T) {
		values := []float64{3, 1, 2}
		percentileTriple(values)
		assert.Equal(t, []float64{3, 1, 2}, values)
	})
}

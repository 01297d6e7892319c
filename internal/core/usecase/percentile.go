package usecase

import (
	"math"
	"sort"
)

// continuousPercentile считает перцентиль с линейной интерполяцией по рангу
// (метод R-7: rank = p*(n-1), дробная часть интерполируется между соседями).
// Выбор метода зафиксирован в DESIGN.md. Срез values должен быть отсортирован.
func continuousPercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)

	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// percentileTriple возвращает p25/p50/p75 одним вызовом.
// Входной срез копируется, чтобы не переставлять данные вызывающего.
func percentileTriple(values []float64) (p25, median, p75 float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p25 = continuousPercentile(sorted, 0.25)
	median = continuousPercentile(sorted, 0.50)
	p75 = continuousPercentile(sorted, 0.75)
	return p25, median, p75
}

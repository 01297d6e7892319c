package usecase

import (
	"math/rand"
	"sync"

	"market-sync-service/internal/core/domain"
)

// Диапазоны синтезируемых значений. Значения подбираются правдоподобными
// для рынка северо-востока США; точные границы - параметр политики,
// а не бизнес-правило.
const (
	estimateMinYearBuilt = 1900
	estimateMaxYearBuilt = 2010

	estimateSqftPerBed = 650.0
	estimateMinBeds    = 1
	estimateMaxBeds    = 6
)

// sqftRange - диапазон площади для типа недвижимости.
type sqftRange struct {
	min float64
	max float64
}

var sqftRangesByType = map[string]sqftRange{
	domain.PropertyTypeSingleFamily: {1100, 2600},
	domain.PropertyTypeMultiFamily:  {1800, 4200},
	domain.PropertyTypeCondo:        {650, 1500},
	domain.PropertyTypeCommercial:   {2000, 10000},
	domain.PropertyTypeMixedUse:     {1500, 6000},
}

var defaultSqftRange = sqftRange{800, 2000}

// DefaultEstimationPolicy - стандартная реализация EstimationPolicyPort.
// Вся случайность идет через один сидированный генератор, поэтому тесты
// могут зафиксировать seed и сверять точные значения.
type DefaultEstimationPolicy struct {
	mu            sync.Mutex
	rnd           *rand.Rand
	jitterDegrees float64
}

// NewDefaultEstimationPolicy создает политику с заданным seed и пределом
// джиттера координат (в градусах).
func NewDefaultEstimationPolicy(seed int64, jitterDegrees float64) *DefaultEstimationPolicy {
	return &DefaultEstimationPolicy{
		rnd:           rand.New(rand.NewSource(seed)),
		jitterDegrees: jitterDegrees,
	}
}

func (p *DefaultEstimationPolicy) randFloat(min, max float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rnd.Float64()*(max-min)
}

func (p *DefaultEstimationPolicy) EstimateSqft(propertyType string) float64 {
	r, ok := sqftRangesByType[propertyType]
	if !ok {
		r = defaultSqftRange
	}
	// Округляем до десятков, чтобы значения не выглядели подозрительно точными
	raw := p.randFloat(r.min, r.max)
	return float64(int(raw/10) * 10)
}

func (p *DefaultEstimationPolicy) EstimateBeds(propertyType string, sqft *float64) int16 {
	if sqft != nil && *sqft > 0 {
		beds := int16(*sqft / estimateSqftPerBed)
		if beds < estimateMinBeds {
			beds = estimateMinBeds
		}
		if beds > estimateMaxBeds {
			beds = estimateMaxBeds
		}
		return beds
	}

	switch propertyType {
	case domain.PropertyTypeMultiFamily:
		return 5
	case domain.PropertyTypeCondo:
		return 2
	default:
		return 3
	}
}

func (p *DefaultEstimationPolicy) EstimateBaths(propertyType string, beds int16) float64 {
	// Половина от спален с шагом 0.5, минимум одна ванная
	baths := float64(beds) / 2.0
	if baths < 1 {
		baths = 1
	}
	return baths
}

func (p *DefaultEstimationPolicy) EstimateYearBuilt(jurisdiction string) int16 {
	return int16(p.randFloat(estimateMinYearBuilt, estimateMaxYearBuilt))
}

func (p *DefaultEstimationPolicy) JitterCoordinate(lat, lng float64) (float64, float64) {
	dLat := p.randFloat(-p.jitterDegrees, p.jitterDegrees)
	dLng := p.randFloat(-p.jitterDegrees, p.jitterDegrees)
	return lat + dLat, lng + dLng
}

package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"

	"github.com/mmcloughlin/geohash"
)

// Веса штрафов в buildingHealthScore. Именованные константы, чтобы
// калибровка не требовала трогать логику.
const (
	maxHealthScore         = 100
	openViolationPenalty   = 5
	recentComplaintPenalty = 2
)

// Пороги бандов рисков по buildingHealthScore.
const (
	healthScoreLowRisk    = 80
	healthScoreMediumRisk = 60
	healthScoreHighRisk   = 40
)

// Транспортный скоринг: в пределах transitFullScoreM метров - максимум,
// дальше скор линейно убывает на пункт за каждые transitDecayPerPointM метров.
const (
	transitFullScoreM     = 400.0
	transitDecayPerPointM = 20.0
)

// Точность geohash-бакетов пространственного индекса. Precision 5 дает
// ячейки примерно 5x5 км; поиск идет по ячейке и ее восьми соседям, так что
// остановка дальше ~5 км считается недостижимой и скор не назначается.
const transitGeohashPrecision = 5

// Веса категорий в оценке полноты данных.
const (
	completenessParcelWeight  = 0.40
	completenessTransitWeight = 0.35
	completenessGeoWeight     = 0.25
)

// Пороги бандов уверенности.
const (
	confidenceHighAbove   = 0.80
	confidenceMediumAbove = 0.50
)

// ComputeSignalsUseCase считает производные сигналы риска/возможностей
// для всех канонических записей и перезаписывает таблицу сигналов.
type ComputeSignalsUseCase struct {
	properties port.PropertyStoragePort
	civic      port.CivicStoragePort
	transit    port.TransitStoragePort
	signals    port.SignalStoragePort

	recentComplaintMonths int
	floodHighLatBelow     float64
	floodModerateLatBelow float64
}

// NewComputeSignalsUseCase создает новый экземпляр use case.
func NewComputeSignalsUseCase(
	properties port.PropertyStoragePort,
	civic port.CivicStoragePort,
	transit port.TransitStoragePort,
	signals port.SignalStoragePort,
	recentComplaintMonths int,
	floodHighLatBelow float64,
	floodModerateLatBelow float64,
) *ComputeSignalsUseCase {
	return &ComputeSignalsUseCase{
		properties:            properties,
		civic:                 civic,
		transit:               transit,
		signals:               signals,
		recentComplaintMonths: recentComplaintMonths,
		floodHighLatBelow:     floodHighLatBelow,
		floodModerateLatBelow: floodModerateLatBelow,
	}
}

// Execute загружает входные данные, считает сигналы и сохраняет их
// full-row upsert'ом. Повторный прогон по тем же данным идемпотентен.
func (uc *ComputeSignalsUseCase) Execute(ctx context.Context) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "ComputeSignals"})

	properties, err := uc.properties.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load properties: %w", err)
	}
	if len(properties) == 0 {
		ucLogger.Info("No properties to compute signals for", nil)
		return 0, nil
	}

	violations, err := uc.civic.OpenViolationCountsByParcel(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load violation counts: %w", err)
	}

	since := time.Now().UTC().AddDate(0, -uc.recentComplaintMonths, 0)
	complaints, err := uc.civic.RecentComplaintCountsByParcel(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load complaint counts: %w", err)
	}

	stops, err := uc.transit.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load transit stops: %w", err)
	}

	summaries := uc.ComputeSignals(properties, violations, complaints, stops)

	saved, err := uc.signals.BatchUpsert(ctx, summaries)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert signal summaries: %w", err)
	}

	ucLogger.Info("Signal summaries computed", port.Fields{
		"properties": len(properties),
		"saved":      saved,
	})
	return saved, nil
}

// ComputeSignals - чистая часть расчета, без обращений к хранилищу.
// Вынесена отдельно, чтобы тесты могли сверять точные значения.
func (uc *ComputeSignalsUseCase) ComputeSignals(
	properties []domain.Property,
	openViolationsByParcel map[string]int,
	recentComplaintsByParcel map[string]int,
	stops []domain.TransitStop,
) []domain.PropertySignalSummary {

	index := buildTransitIndex(stops)
	now := time.Now().UTC()

	summaries := make([]domain.PropertySignalSummary, 0, len(properties))
	for _, prop := range properties {
		s := domain.PropertySignalSummary{
			PropertyID: prop.ID,
			ComputedAt: now,
		}

		// Муниципальные записи джойнятся только через ключ участка.
		if prop.ParcelKey != "" {
			s.OpenViolations = openViolationsByParcel[prop.ParcelKey]
			s.RecentComplaints = recentComplaintsByParcel[prop.ParcelKey]
		}

		score := maxHealthScore - s.OpenViolations*openViolationPenalty - s.RecentComplaints*recentComplaintPenalty
		if score < 0 {
			score = 0
		}
		s.BuildingHealthScore = score
		s.HealthRiskLevel = healthRiskLevel(score)

		s.FloodRiskLevel = uc.floodRiskLevel(prop.Latitude)

		if dist, ok := index.nearestDistanceM(prop.Latitude, prop.Longitude); ok {
			s.TransitDistanceM = &dist
			ts := transitScore(dist)
			s.TransitScore = &ts
		}

		s.DataCompleteness = completenessScore(prop, s.TransitDistanceM != nil)
		s.SignalConfidence = confidenceBand(s.DataCompleteness)

		summaries = append(summaries, s)
	}

	return summaries
}

func healthRiskLevel(score int) string {
	switch {
	case score >= healthScoreLowRisk:
		return domain.RiskLevelLow
	case score >= healthScoreMediumRisk:
		return domain.RiskLevelMedium
	case score >= healthScoreHighRisk:
		return domain.RiskLevelHigh
	default:
		return domain.RiskLevelCritical
	}
}

// floodRiskLevel - эвристический прокси по широтной полосе, а не настоящий
// джойн с флуд-зонами. Южнее (ближе к побережью) - выше риск. Пороги
// конфигурируемы и требуют подтверждения доменного эксперта.
func (uc *ComputeSignalsUseCase) floodRiskLevel(lat float64) string {
	switch {
	case lat < uc.floodHighLatBelow:
		return domain.FloodRiskHigh
	case lat < uc.floodModerateLatBelow:
		return domain.FloodRiskModerate
	default:
		return domain.FloodRiskLow
	}
}

func transitScore(distanceM float64) int {
	if distanceM <= transitFullScoreM {
		return 100
	}
	score := 100 - int((distanceM-transitFullScoreM)/transitDecayPerPointM)
	if score < 0 {
		return 0
	}
	return score
}

// completenessScore - взвешенная полнота независимых категорий данных:
// привязка к участку, разрешенный транспорт, точная геопривязка.
func completenessScore(prop domain.Property, transitResolved bool) float64 {
	score := 0.0
	if prop.ParcelKey != "" {
		score += completenessParcelWeight
	}
	if transitResolved {
		score += completenessTransitWeight
	}
	if !prop.Provenance.GeoApproximate {
		score += completenessGeoWeight
	}
	return score
}

func confidenceBand(completeness float64) string {
	switch {
	case completeness >= confidenceHighAbove:
		return domain.ConfidenceHigh
	case completeness >= confidenceMediumAbove:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// transitIndex - пространственный индекс остановок по geohash-бакетам.
// Поиск ближайшего соседа идет по бакету точки и его восьми соседям,
// без полного перебора таблицы.
type transitIndex struct {
	buckets map[string][]domain.TransitStop
}

func buildTransitIndex(stops []domain.TransitStop) *transitIndex {
	idx := &transitIndex{buckets: make(map[string][]domain.TransitStop)}
	for _, stop := range stops {
		key := geohash.EncodeWithPrecision(stop.Latitude, stop.Longitude, transitGeohashPrecision)
		idx.buckets[key] = append(idx.buckets[key], stop)
	}
	return idx
}

// nearestDistanceM возвращает расстояние до ближайшей остановки в метрах.
// ok=false, когда в окрестных бакетах кандидатов нет.
func (idx *transitIndex) nearestDistanceM(lat, lng float64) (float64, bool) {
	if len(idx.buckets) == 0 {
		return 0, false
	}

	center := geohash.EncodeWithPrecision(lat, lng, transitGeohashPrecision)
	candidates := append([]string{center}, geohash.Neighbors(center)...)

	best := math.MaxFloat64
	found := false
	for _, key := range candidates {
		for _, stop := range idx.buckets[key] {
			d := haversineM(lat, lng, stop.Latitude, stop.Longitude)
			if d < best {
				best = d
				found = true
			}
		}
	}

	if !found {
		return 0, false
	}
	return best, true
}

const earthRadiusM = 6371000.0

func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

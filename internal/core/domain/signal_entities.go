package domain

import (
	"time"

	"github.com/google/uuid"
)

// Уровни риска по здоровью здания (банды от buildingHealthScore).
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// Банды уверенности в данных.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Уровни риска затопления. Эвристика по широтной полосе, а не настоящий
// геопространственный джойн с картами FEMA - см. DESIGN.md.
const (
	FloodRiskLow      = "low"
	FloodRiskModerate = "moderate"
	FloodRiskHigh     = "high"
)

// PropertySignalSummary - производные сигналы риска/возможностей для одного
// объекта. Связь 1:1 с Property через PropertyID; при каждом прогоне
// перезаписывается целиком (full-row upsert).
// Соответствует таблице `property_signal_summaries`.
type PropertySignalSummary struct {
	PropertyID uuid.UUID
	ComputedAt time.Time

	OpenViolations   int
	RecentComplaints int

	BuildingHealthScore int
	HealthRiskLevel     string

	FloodRiskLevel string

	// TransitDistanceM - расстояние до ближайшей остановки в метрах.
	// nil, когда в соседних geohash-бакетах не нашлось кандидатов.
	TransitDistanceM *float64
	TransitScore     *int

	DataCompleteness float64 // 0..1
	SignalConfidence string
}

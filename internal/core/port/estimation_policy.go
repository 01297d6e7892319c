package port

// EstimationPolicyPort - стратегия синтеза правдоподобных значений для
// полей, которых нет в источнике. Это осознанный fallback ради покрытия,
// а не тихая порча данных: каждое синтезированное поле помечается в
// Property.Provenance. В тестах подставляется детерминированная реализация.
type EstimationPolicyPort interface {
	EstimateBeds(propertyType string, sqft *float64) int16

	EstimateBaths(propertyType string, beds int16) float64

	EstimateSqft(propertyType string) float64

	EstimateYearBuilt(jurisdiction string) int16

	// JitterCoordinate смещает центроид муниципалитета на небольшую
	// ограниченную дельту, чтобы объекты без координат не слипались
	// в одну точку.
	JitterCoordinate(lat, lng float64) (float64, float64)
}

package domain

import "time"

// Уровни географической иерархии, от самого мелкого к самому крупному.
// ZIP считается напрямую из канонических записей, остальные уровни
// сворачиваются из ZIP-результатов.
const (
	GeoTypeZip          = "zip"
	GeoTypeCity         = "city"
	GeoTypeCounty       = "county"
	GeoTypeNeighborhood = "neighborhood"
)

// MarketAggregate - перцентильная статистика рынка для одной географической
// единицы. Уникальна по (GeoType, GeoID). Таблица для каждого уровня
// полностью заменяется при каждом прогоне (snapshot-replace), частичных
// обновлений не бывает.
// Соответствует таблице `market_aggregates`.
type MarketAggregate struct {
	GeoType string
	GeoID   string
	State   string

	SampleCount int

	PriceP25    float64
	PriceMedian float64
	PriceP75    float64

	// Перцентили цены за квадратный фут. Считаются только по записям
	// с известной площадью, поэтому выборка может быть меньше SampleCount.
	PpsfSampleCount int
	PpsfP25         float64
	PpsfMedian      float64
	PpsfP75         float64

	// Поля трендов пока не заполняются: для год-к-году нужна история
	// снапшотов, которой у таблицы с replace-семантикой нет.
	TrendYoY *float64

	ComputedAt time.Time
}

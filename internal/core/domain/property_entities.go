package domain

import (
	"time"

	"github.com/google/uuid"
)

// Канонические типы недвижимости. Коды землепользования из исходных фидов
// переводятся в один из этих типов через таблицы в constants.
const (
	PropertyTypeSingleFamily = "single_family"
	PropertyTypeMultiFamily  = "multi_family"
	PropertyTypeCondo        = "condo"
	PropertyTypeCommercial   = "commercial"
	PropertyTypeMixedUse     = "mixed_use"
	PropertyTypeVacantLand   = "vacant_land"

	// PropertyTypeOther - категория по умолчанию для неизвестных кодов.
	PropertyTypeOther = "other"
)

// Property - каноническая запись объекта недвижимости.
// Создается только нормализатором; сигналы и агрегаты пишут в свои таблицы
// и никогда не мутируют эту структуру.
// Соответствует таблице `properties`.
type Property struct {
	ID           uuid.UUID
	Jurisdiction string // "nj", "ct", ...
	SourceKey    string // уникальный ключ записи внутри фида (вместе с Jurisdiction)
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Address      string
	Municipality string
	County       string
	Neighborhood string // может быть пустым, тогда объект не участвует в neighborhood-агрегатах
	ZipCode      string
	State        string

	Latitude  float64
	Longitude float64

	PropertyType string
	Beds         *int16
	Baths        *float64
	Sqft         *float64
	YearBuilt    *int16

	AssessedValue  float64
	EstimatedValue float64
	PricePerSqft   *float64 // nil, если площадь неизвестна или равна нулю
	LastSalePrice  *float64
	LastSaleDate   *time.Time

	// ParcelKey - ключ привязки к муниципальным данным (например, BBL).
	// Пустая строка означает, что привязка не разрешена.
	ParcelKey string

	Provenance PropertyProvenance
}

// PropertyProvenance отмечает, какие поля были синтезированы политикой
// оценки, а не получены из источника. Потребители обязаны уметь отличать
// такие значения от подтвержденных.
type PropertyProvenance struct {
	BedsEstimated      bool
	BathsEstimated     bool
	SqftEstimated      bool
	YearBuiltEstimated bool

	// GeoApproximate - true, когда координаты взяты из центроида
	// муниципалитета с небольшим джиттером, а не из самой записи.
	GeoApproximate bool
}

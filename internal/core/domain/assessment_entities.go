package domain

// RawAssessment - сырая строка из фида оценщика, до нормализации.
// Поля намеренно оставлены "как пришли": цены строками, числовые
// атрибуты указателями, код землепользования без расшифровки.
// Нормализатор превращает это в каноническую Property.
type RawAssessment struct {
	Jurisdiction string
	SourceKey    string

	Address      string
	Municipality string
	County       string
	District     string // район/neighborhood, если фид его отдает
	ZipCode      string

	// LandUseCode - код землепользования в нотации юрисдикции
	// (например, "2" у NJ, "101" у CT). Переводится через lookup-таблицу.
	LandUseCode string

	AssessedValue string // строка из фида, парсится нормализатором
	LastSalePrice string
	LastSaleDate  string

	Beds      *int16
	Baths     *float64
	Sqft      *float64
	YearBuilt *int16

	Latitude  *float64
	Longitude *float64

	// ParcelKey - ключ привязки к муниципальным записям, если фид его отдает.
	ParcelKey string
}

package constants

// Имена источников. Под этими именами записи лежат в raw_civic_records
// и data_source_meta.
const (
	SourceNYCPermits    = "nyc_dob_permits"
	SourceNYCViolations = "nyc_dob_violations"
	SourceNYC311        = "nyc_311_complaints"
	SourceNYCTransit    = "nyc_subway_stations"
)

// Юрисдикции фидов оценщиков.
const (
	JurisdictionNJ = "nj"
	JurisdictionCT = "ct"
)

// Query-параметры Socrata-совместимых порталов открытых данных.
const (
	ParamWhere = "$where"
	ParamLimit = "$limit"
	ParamOrder = "$order"
)

// Сортировка по дате выдачи, свежие первыми.
const SortByIssuedDateDesc = "issued_date DESC"

// NJPropertyClassMap - перевод классов недвижимости NJ (MOD-IV) в
// канонические типы. Неизвестный класс переводится в PropertyTypeOther.
var NJPropertyClassMap = map[string]string{
	"1":  "vacant_land",
	"2":  "single_family",
	"3A": "other", // farm (regular)
	"3B": "vacant_land",
	"4A": "commercial",
	"4B": "commercial",
	"4C": "multi_family",
}

// CTStateUseCodeMap - перевод кодов землепользования CT.
var CTStateUseCodeMap = map[string]string{
	"100": "single_family",
	"101": "single_family",
	"102": "condo",
	"103": "multi_family",
	"104": "multi_family",
	"200": "commercial",
	"300": "vacant_land",
	"400": "mixed_use",
}

// EqualizationRatios - множители от оценочной стоимости к рыночной.
// NJ оценивает близко к рынку, CT - на уровне 70% от рыночной стоимости.
var EqualizationRatios = map[string]float64{
	"nj": 1.142,
	"ct": 1.429,
}

// Centroid - координаты центроида муниципалитета.
type Centroid struct {
	Lat float64
	Lng float64
}

// MunicipalityCentroids - fallback-координаты для записей без геопривязки.
// Ключ: "<jurisdiction>|<municipality в нижнем регистре>".
var MunicipalityCentroids = map[string]Centroid{
	"nj|newark":      {40.7357, -74.1724},
	"nj|jersey city": {40.7282, -74.0776},
	"nj|hoboken":     {40.7440, -74.0324},
	"nj|paterson":    {40.9168, -74.1718},
	"nj|elizabeth":   {40.6639, -74.2107},
	"ct|stamford":    {41.0534, -73.5387},
	"ct|bridgeport":  {41.1792, -73.1894},
	"ct|new haven":   {41.3083, -72.9279},
	"ct|hartford":    {41.7658, -72.6734},
	"ct|norwalk":     {41.1177, -73.4079},
}

// StateCentroids - самый грубый fallback, когда муниципалитет неизвестен.
var StateCentroids = map[string]Centroid{
	"nj": {40.0583, -74.4057},
	"ct": {41.6032, -73.0877},
}

// JurisdictionStates - почтовый код штата для каждой юрисдикции.
var JurisdictionStates = map[string]string{
	"nj": "NJ",
	"ct": "CT",
}

package domain

import "time"

// Виды муниципальных записей.
const (
	CivicRecordPermit    = "permit"
	CivicRecordViolation = "violation"
	CivicRecordComplaint = "complaint"
)

// Статусы нарушений, которые считаем "открытыми" при расчете сигналов.
const (
	CivicStatusOpen   = "open"
	CivicStatusClosed = "closed"
)

// RawCivicRecord - одна запись из открытого муниципального источника
// (разрешение на строительство, нарушение, жалоба 311).
// Уникальна по паре (Source, ExternalID). После вставки не обновляется:
// повторная загрузка работает по принципу insert-or-ignore.
// Соответствует таблице `raw_civic_records`.
type RawCivicRecord struct {
	Source     string // "nyc_dob_permits", "nyc_dob_violations", "nyc_311"
	ExternalID string
	RecordType string // permit | violation | complaint
	Status     string

	// ParcelKey - ключ участка (для NYC это BBL), по нему запись
	// джойнится с канонической недвижимостью.
	ParcelKey string

	Description string
	IssuedAt    time.Time
	FetchedAt   time.Time
}

// TransitStop - точка транспортной инфраструктуры (станция метро и т.п.),
// используется индексом ближайших соседей в расчете сигналов.
// Соответствует таблице `transit_stops`.
type TransitStop struct {
	ExternalID string
	Name       string
	Lines      string
	Latitude   float64
	Longitude  float64
}

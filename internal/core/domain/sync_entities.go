package domain

import (
	"time"

	"github.com/google/uuid"
)

// Итог обработки одного домена в рамках прогона синхронизации.
const (
	DomainOutcomeSynced  = "synced"
	DomainOutcomeSkipped = "skipped_fresh"
	DomainOutcomeFailed  = "failed"
)

// TimeRange ограничивает окно выборки из внешнего источника.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// DomainResult - результат обработки одного домена (одного источника данных).
type DomainResult struct {
	Domain       string `json:"domain"`
	Outcome      string `json:"outcome"` // synced | skipped_fresh | failed
	RecordsSaved int    `json:"records_saved"`
	Error        string `json:"error,omitempty"`
}

// SyncReport - итоговый отчет прогона EvaluateAndSync. Частичные сбои
// не превращаются в ошибку: они фиксируются здесь и уходят в лог и в
// очередь отчетов.
type SyncReport struct {
	RunID      uuid.UUID      `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Domains    []DomainResult `json:"domains"`

	SignalsComputed  int  `json:"signals_computed"`
	SignalsFailed    bool `json:"signals_failed"`
	AggregatesTotal  int  `json:"aggregates_total"`
	AggregatesFailed bool `json:"aggregates_failed"`

	FinalCounts StoreCounts `json:"final_counts"`
}

// StoreCounts - снимок размеров таблиц; по нему координатор решает,
// что устарело, а потребители наблюдают прогресс.
type StoreCounts struct {
	PropertiesByJurisdiction map[string]int `json:"properties_by_jurisdiction"`
	CivicRecordsBySource     map[string]int `json:"civic_records_by_source"`
	TransitStops             int            `json:"transit_stops"`
	SignalSummaries          int            `json:"signal_summaries"`
	Aggregates               int            `json:"aggregates"`
}

// DataSourceMeta - служебная запись об источнике: когда обновлялся
// и сколько записей принес последний успешный прогон.
// Соответствует таблице `data_source_meta`.
type DataSourceMeta struct {
	Source        string
	LastRefreshAt time.Time
	RecordCount   int
}

package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// CivicFetcherPort - источник муниципальных записей (разрешения, нарушения,
// жалобы 311) для одного датасета. При сетевой ошибке адаптер возвращает
// уже собранную часть записей вместе с ненулевой ошибкой; ретраи не делает -
// изоляция по доменам в координаторе является границей устойчивости.
type CivicFetcherPort interface {
	// Source возвращает имя источника, под которым записи попадают в хранилище.
	Source() string

	// FetchCivicRecords извлекает записи за окно window, но не больше limit.
	FetchCivicRecords(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawCivicRecord, error)
}

// TransitFetcherPort - источник точек транспортной инфраструктуры.
type TransitFetcherPort interface {
	Source() string

	FetchTransitStops(ctx context.Context, limit int) ([]domain.TransitStop, error)
}

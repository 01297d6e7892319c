package port

import (
	"context"
	"market-sync-service/internal/core/domain"
	"time"
)

// CivicStoragePort - операции над таблицей сырых муниципальных записей.
// Записи иммутабельны: вставка идет по принципу insert-or-ignore по ключу
// (source, external_id), обновлений не бывает.
type CivicStoragePort interface {
	// BatchInsertIgnore вставляет пачку записей, молча пропуская дубликаты.
	// Возвращает количество реально вставленных строк.
	BatchInsertIgnore(ctx context.Context, records []domain.RawCivicRecord) (int, error)

	// CountBySource возвращает количество записей по каждому источнику.
	CountBySource(ctx context.Context) (map[string]int, error)

	// OpenViolationCountsByParcel возвращает количество открытых нарушений
	// на каждый ключ участка.
	OpenViolationCountsByParcel(ctx context.Context) (map[string]int, error)

	// RecentComplaintCountsByParcel возвращает количество жалоб,
	// поданных не раньше since, на каждый ключ участка.
	RecentComplaintCountsByParcel(ctx context.Context, since time.Time) (map[string]int, error)
}

// TransitStoragePort - операции над таблицей транспортных точек.
// Таблица целиком заменяется при каждом успешном обновлении источника.
type TransitStoragePort interface {
	ReplaceAll(ctx context.Context, stops []domain.TransitStop) (int, error)

	ListAll(ctx context.Context) ([]domain.TransitStop, error)

	Count(ctx context.Context) (int, error)
}

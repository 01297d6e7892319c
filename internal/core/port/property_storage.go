package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// PropertyStoragePort - операции над таблицей канонической недвижимости.
// Upsert идемпотентен по ключу (jurisdiction, source_key): повторные прогоны
// с теми же данными сходятся к одному и тому же состоянию.
type PropertyStoragePort interface {
	// BatchUpsert сохраняет пачку записей и возвращает количество сохраненных.
	BatchUpsert(ctx context.Context, properties []domain.Property) (int, error)

	// ListAll возвращает все канонические записи. Используется расчетом
	// сигналов и агрегацией; объемы ограничены record cap'ом источников.
	ListAll(ctx context.Context) ([]domain.Property, error)

	// CountByJurisdiction возвращает количество записей по каждой юрисдикции.
	CountByJurisdiction(ctx context.Context) (map[string]int, error)
}

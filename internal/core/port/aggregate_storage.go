package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// AggregateStoragePort - операции над таблицей рыночных агрегатов.
// Замена уровня атомарна: читатели видят либо старый снапшот целиком,
// либо новый, но никогда - смесь.
type AggregateStoragePort interface {
	// ReplaceForGeoType удаляет все строки уровня geoType и вставляет
	// свежий набор в одной транзакции.
	ReplaceForGeoType(ctx context.Context, geoType string, rows []domain.MarketAggregate) (int, error)

	Count(ctx context.Context) (int, error)
}

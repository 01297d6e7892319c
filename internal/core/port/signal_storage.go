package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// SignalStoragePort - операции над таблицей производных сигналов.
// Upsert по property_id перезаписывает строку целиком.
type SignalStoragePort interface {
	BatchUpsert(ctx context.Context, summaries []domain.PropertySignalSummary) (int, error)

	Count(ctx context.Context) (int, error)
}

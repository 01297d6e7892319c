package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// SourceMetaStoragePort - служебная таблица о состоянии источников.
type SourceMetaStoragePort interface {
	Upsert(ctx context.Context, meta domain.DataSourceMeta) error

	// Get возвращает nil без ошибки, если источник еще ни разу не обновлялся.
	Get(ctx context.Context, source string) (*domain.DataSourceMeta, error)
}

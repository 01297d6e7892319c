package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

// Upsert записывает отметку об успешном обновлении источника.
func (a *SourceMetaStorageAdapter) Upsert(ctx context.Context, meta domain.DataSourceMeta) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO data_source_meta (source, last_refresh_at, record_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET
			last_refresh_at = EXCLUDED.last_refresh_at,
			record_count = EXCLUDED.record_count;
	`, meta.Source, meta.LastRefreshAt, meta.RecordCount)
	if err != nil {
		return fmt.Errorf("SourceMetaStorageAdapter: failed to upsert source meta: %w", err)
	}
	return nil
}

// Get возвращает nil без ошибки, если источник еще ни разу не обновлялся.
func (a *SourceMetaStorageAdapter) Get(ctx context.Context, source string) (*domain.DataSourceMeta, error) {
	var meta domain.DataSourceMeta
	err := a.pool.QueryRow(ctx,
		`SELECT source, last_refresh_at, record_count FROM data_source_meta WHERE source = $1`,
		source,
	).Scan(&meta.Source, &meta.LastRefreshAt, &meta.RecordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("SourceMetaStorageAdapter: failed to get source meta: %w", err)
	}
	return &meta, nil
}

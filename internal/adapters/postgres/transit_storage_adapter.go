package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

var transitColumns = []string{"external_id", "name", "lines", "latitude", "longitude"}

// ReplaceAll заменяет справочник транспортных точек целиком в одной
// транзакции. Читатели видят либо старый набор, либо новый.
func (a *TransitStorageAdapter) ReplaceAll(ctx context.Context, stops []domain.TransitStop) (int, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM transit_stops`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transit_stops: %w", err)
	}

	rows := make([][]interface{}, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, []interface{}{s.ExternalID, s.Name, s.Lines, s.Latitude, s.Longitude})
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"transit_stops"}, transitColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy to transit_stops: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transit replace: %w", err)
	}
	return int(inserted), nil
}

func (a *TransitStorageAdapter) ListAll(ctx context.Context) ([]domain.TransitStop, error) {
	rows, err := a.pool.Query(ctx, `SELECT external_id, name, lines, latitude, longitude FROM transit_stops`)
	if err != nil {
		return nil, fmt.Errorf("TransitStorageAdapter: failed to query transit stops: %w", err)
	}
	defer rows.Close()

	var stops []domain.TransitStop
	for rows.Next() {
		var s domain.TransitStop
		if err := rows.Scan(&s.ExternalID, &s.Name, &s.Lines, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("TransitStorageAdapter: failed to scan transit stop: %w", err)
		}
		stops = append(stops, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("TransitStorageAdapter: error during transit iteration: %w", err)
	}

	return stops, nil
}

func (a *TransitStorageAdapter) Count(ctx context.Context) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transit_stops`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("TransitStorageAdapter: failed to count transit stops: %w", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

var aggregateColumns = []string{
	"geo_type", "geo_id", "state", "sample_count",
	"price_p25", "price_median", "price_p75",
	"ppsf_sample_count", "ppsf_p25", "ppsf_median", "ppsf_p75",
	"trend_yoy", "computed_at",
}

// ReplaceForGeoType заменяет снапшот одного географического уровня целиком:
// DELETE по geo_type и COPY свежего набора в одной транзакции.
func (a *AggregateStorageAdapter) ReplaceForGeoType(ctx context.Context, geoType string, rows []domain.MarketAggregate) (int, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM market_aggregates WHERE geo_type = $1`, geoType)
	if err != nil {
		return 0, fmt.Errorf("failed to clear aggregates for geo_type %s: %w", geoType, err)
	}

	values := make([][]interface{}, 0, len(rows))
	for _, agg := range rows {
		values = append(values, []interface{}{
			agg.GeoType, agg.GeoID, agg.State, agg.SampleCount,
			agg.PriceP25, agg.PriceMedian, agg.PriceP75,
			agg.PpsfSampleCount, agg.PpsfP25, agg.PpsfMedian, agg.PpsfP75,
			agg.TrendYoY, agg.ComputedAt,
		})
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"market_aggregates"}, aggregateColumns, pgx.CopyFromRows(values))
	if err != nil {
		return 0, fmt.Errorf("failed to copy to market_aggregates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit aggregates replace: %w", err)
	}
	return int(inserted), nil
}

func (a *AggregateStorageAdapter) Count(ctx context.Context) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_aggregates`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("AggregateStorageAdapter: failed to count aggregates: %w", err)
	}
	return count, nil
}

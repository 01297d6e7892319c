package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

var signalColumns = []string{
	"property_id", "computed_at",
	"open_violations", "recent_complaints",
	"building_health_score", "health_risk_level", "flood_risk_level",
	"transit_distance_m", "transit_score",
	"data_completeness", "signal_confidence",
}

// BatchUpsert перезаписывает сигналы пачкой: full-row upsert по property_id,
// чанк за чанком.
func (a *SignalStorageAdapter) BatchUpsert(ctx context.Context, summaries []domain.PropertySignalSummary) (int, error) {
	total := 0
	for _, chunk := range chunked(summaries) {
		saved, err := a.upsertChunk(ctx, chunk)
		if err != nil {
			return total, err
		}
		total += saved
	}
	return total, nil
}

func (a *SignalStorageAdapter) upsertChunk(ctx context.Context, summaries []domain.PropertySignalSummary) (int, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `CREATE TEMP TABLE temp_property_signal_summaries (LIKE property_signal_summaries) ON COMMIT DROP;`)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp table for property_signal_summaries: %w", err)
	}

	rows := make([][]interface{}, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []interface{}{
			s.PropertyID, s.ComputedAt,
			s.OpenViolations, s.RecentComplaints,
			s.BuildingHealthScore, s.HealthRiskLevel, s.FloodRiskLevel,
			s.TransitDistanceM, s.TransitScore,
			s.DataCompleteness, s.SignalConfidence,
		})
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"temp_property_signal_summaries"}, signalColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy to temp_property_signal_summaries: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO property_signal_summaries (
			property_id, computed_at,
			open_violations, recent_complaints,
			building_health_score, health_risk_level, flood_risk_level,
			transit_distance_m, transit_score,
			data_completeness, signal_confidence
		)
		SELECT
			property_id, computed_at,
			open_violations, recent_complaints,
			building_health_score, health_risk_level, flood_risk_level,
			transit_distance_m, transit_score,
			data_completeness, signal_confidence
		FROM temp_property_signal_summaries
		ON CONFLICT (property_id) DO UPDATE SET
			computed_at = EXCLUDED.computed_at,
			open_violations = EXCLUDED.open_violations,
			recent_complaints = EXCLUDED.recent_complaints,
			building_health_score = EXCLUDED.building_health_score,
			health_risk_level = EXCLUDED.health_risk_level,
			flood_risk_level = EXCLUDED.flood_risk_level,
			transit_distance_m = EXCLUDED.transit_distance_m,
			transit_score = EXCLUDED.transit_score,
			data_completeness = EXCLUDED.data_completeness,
			signal_confidence = EXCLUDED.signal_confidence;
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to merge from temp_property_signal_summaries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit signals batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (a *SignalStorageAdapter) Count(ctx context.Context) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM property_signal_summaries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("SignalStorageAdapter: failed to count signal summaries: %w", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

var civicColumns = []string{
	"source", "external_id", "record_type", "status", "parcel_key",
	"description", "issued_at", "fetched_at",
}

// BatchInsertIgnore вставляет пачку муниципальных записей, молча пропуская
// дубликаты по (source, external_id). Записи иммутабельны, обновлений нет.
// Дубликаты отсекаются по всей пачке до разбиения на чанки.
func (a *CivicStorageAdapter) BatchInsertIgnore(ctx context.Context, records []domain.RawCivicRecord) (int, error) {
	deduped := make([]domain.RawCivicRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		// Дубликаты внутри пачки ломают COPY+merge, отсекаем их заранее
		key := rec.Source + "|" + rec.ExternalID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, rec)
	}

	total := 0
	for _, chunk := range chunked(deduped) {
		saved, err := a.insertChunk(ctx, chunk)
		if err != nil {
			return total, err
		}
		total += saved
	}
	return total, nil
}

func (a *CivicStorageAdapter) insertChunk(ctx context.Context, records []domain.RawCivicRecord) (int, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `CREATE TEMP TABLE temp_raw_civic_records (LIKE raw_civic_records) ON COMMIT DROP;`)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp table for raw_civic_records: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.Source, rec.ExternalID, rec.RecordType, rec.Status, rec.ParcelKey,
			rec.Description, rec.IssuedAt, rec.FetchedAt,
		})
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"temp_raw_civic_records"}, civicColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy to temp_raw_civic_records: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO raw_civic_records (
			source, external_id, record_type, status, parcel_key,
			description, issued_at, fetched_at
		)
		SELECT
			source, external_id, record_type, status, parcel_key,
			description, issued_at, fetched_at
		FROM temp_raw_civic_records
		ON CONFLICT (source, external_id) DO NOTHING;
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to merge from temp_raw_civic_records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit civic batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountBySource возвращает количество записей по каждому источнику.
func (a *CivicStorageAdapter) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := a.pool.Query(ctx, `SELECT source, COUNT(*) FROM raw_civic_records GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("CivicStorageAdapter: failed to count civic records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("CivicStorageAdapter: failed to scan source count: %w", err)
		}
		counts[source] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("CivicStorageAdapter: error during count iteration: %w", err)
	}

	return counts, nil
}

// OpenViolationCountsByParcel возвращает количество открытых нарушений
// на каждый непустой ключ участка.
func (a *CivicStorageAdapter) OpenViolationCountsByParcel(ctx context.Context) (map[string]int, error) {
	query := `SELECT parcel_key, COUNT(*) FROM raw_civic_records
		WHERE record_type = $1 AND status = $2 AND parcel_key <> ''
		GROUP BY parcel_key`

	rows, err := a.pool.Query(ctx, query, domain.CivicRecordViolation, domain.CivicStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("CivicStorageAdapter: failed to count open violations: %w", err)
	}
	defer rows.Close()

	return scanParcelCounts(rows)
}

// RecentComplaintCountsByParcel возвращает количество жалоб не раньше since
// на каждый непустой ключ участка.
func (a *CivicStorageAdapter) RecentComplaintCountsByParcel(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `SELECT parcel_key, COUNT(*) FROM raw_civic_records
		WHERE record_type = $1 AND issued_at >= $2 AND parcel_key <> ''
		GROUP BY parcel_key`

	rows, err := a.pool.Query(ctx, query, domain.CivicRecordComplaint, since)
	if err != nil {
		return nil, fmt.Errorf("CivicStorageAdapter: failed to count recent complaints: %w", err)
	}
	defer rows.Close()

	return scanParcelCounts(rows)
}

func scanParcelCounts(rows pgx.Rows) (map[string]int, error) {
	counts := make(map[string]int)
	for rows.Next() {
		var parcelKey string
		var count int
		if err := rows.Scan(&parcelKey, &count); err != nil {
			return nil, fmt.Errorf("CivicStorageAdapter: failed to scan parcel count: %w", err)
		}
		counts[parcelKey] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CivicStorageAdapter: error during parcel count iteration: %w", err)
	}
	return counts, nil
}

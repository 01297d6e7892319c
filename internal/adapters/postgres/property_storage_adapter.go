package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-sync-service/internal/core/domain"
)

// Колонки таблицы properties в порядке вставки.
var propertyColumns = []string{
	"id", "jurisdiction", "source_key", "created_at", "updated_at",
	"address", "municipality", "county", "neighborhood", "zip_code", "state",
	"latitude", "longitude",
	"property_type", "beds", "baths", "sqft", "year_built",
	"assessed_value", "estimated_value", "price_per_sqft", "last_sale_price", "last_sale_date",
	"parcel_key",
	"beds_estimated", "baths_estimated", "sqft_estimated", "year_built_estimated", "geo_approximate",
}

// BatchUpsert сохраняет пачку канонических записей через COPY во временную
// таблицу и merge по ключу (jurisdiction, source_key). Повторный прогон
// с теми же данными сходится к тому же состоянию таблицы. Пачка режется
// на чанки, каждый идет своей транзакцией.
func (a *PropertyStorageAdapter) BatchUpsert(ctx context.Context, properties []domain.Property) (int, error) {
	total := 0
	for _, chunk := range chunked(dedupeProperties(properties)) {
		saved, err := a.upsertChunk(ctx, chunk)
		if err != nil {
			return total, err
		}
		total += saved
	}
	return total, nil
}

// dedupeProperties отсекает повторы по (jurisdiction, source_key) внутри пачки.
// Дубликаты внутри пачки ломают COPY+merge: ON CONFLICT DO UPDATE не может
// трогать одну строку дважды. Пагинация по мутирующей выдаче может вернуть
// один source_key на двух страницах, первая запись свежее.
func dedupeProperties(properties []domain.Property) []domain.Property {
	deduped := make([]domain.Property, 0, len(properties))
	seen := make(map[string]struct{}, len(properties))
	for _, p := range properties {
		key := p.Jurisdiction + "|" + p.SourceKey
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, p)
	}
	return deduped
}

func (a *PropertyStorageAdapter) upsertChunk(ctx context.Context, properties []domain.Property) (int, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `CREATE TEMP TABLE temp_properties (LIKE properties) ON COMMIT DROP;`)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp table for properties: %w", err)
	}

	rows := make([][]interface{}, 0, len(properties))
	for _, p := range properties {
		rows = append(rows, []interface{}{
			p.ID, p.Jurisdiction, p.SourceKey, p.CreatedAt, p.UpdatedAt,
			p.Address, p.Municipality, p.County, p.Neighborhood, p.ZipCode, p.State,
			p.Latitude, p.Longitude,
			p.PropertyType, p.Beds, p.Baths, p.Sqft, p.YearBuilt,
			p.AssessedValue, p.EstimatedValue, p.PricePerSqft, p.LastSalePrice, p.LastSaleDate,
			p.ParcelKey,
			p.Provenance.BedsEstimated, p.Provenance.BathsEstimated, p.Provenance.SqftEstimated,
			p.Provenance.YearBuiltEstimated, p.Provenance.GeoApproximate,
		})
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"temp_properties"}, propertyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy to temp_properties: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO properties (
			id, jurisdiction, source_key, created_at, updated_at,
			address, municipality, county, neighborhood, zip_code, state,
			latitude, longitude,
			property_type, beds, baths, sqft, year_built,
			assessed_value, estimated_value, price_per_sqft, last_sale_price, last_sale_date,
			parcel_key,
			beds_estimated, baths_estimated, sqft_estimated, year_built_estimated, geo_approximate
		)
		SELECT
			id, jurisdiction, source_key, created_at, updated_at,
			address, municipality, county, neighborhood, zip_code, state,
			latitude, longitude,
			property_type, beds, baths, sqft, year_built,
			assessed_value, estimated_value, price_per_sqft, last_sale_price, last_sale_date,
			parcel_key,
			beds_estimated, baths_estimated, sqft_estimated, year_built_estimated, geo_approximate
		FROM temp_properties
		ON CONFLICT (jurisdiction, source_key) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			address = EXCLUDED.address,
			municipality = EXCLUDED.municipality,
			county = EXCLUDED.county,
			neighborhood = EXCLUDED.neighborhood,
			zip_code = EXCLUDED.zip_code,
			state = EXCLUDED.state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			property_type = EXCLUDED.property_type,
			beds = EXCLUDED.beds,
			baths = EXCLUDED.baths,
			sqft = EXCLUDED.sqft,
			year_built = EXCLUDED.year_built,
			assessed_value = EXCLUDED.assessed_value,
			estimated_value = EXCLUDED.estimated_value,
			price_per_sqft = EXCLUDED.price_per_sqft,
			last_sale_price = EXCLUDED.last_sale_price,
			last_sale_date = EXCLUDED.last_sale_date,
			parcel_key = EXCLUDED.parcel_key,
			beds_estimated = EXCLUDED.beds_estimated,
			baths_estimated = EXCLUDED.baths_estimated,
			sqft_estimated = EXCLUDED.sqft_estimated,
			year_built_estimated = EXCLUDED.year_built_estimated,
			geo_approximate = EXCLUDED.geo_approximate;
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to merge from temp_properties: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit properties batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListAll возвращает все канонические записи.
func (a *PropertyStorageAdapter) ListAll(ctx context.Context) ([]domain.Property, error) {
	query := `SELECT
			id, jurisdiction, source_key, created_at, updated_at,
			address, municipality, county, neighborhood, zip_code, state,
			latitude, longitude,
			property_type, beds, baths, sqft, year_built,
			assessed_value, estimated_value, price_per_sqft, last_sale_price, last_sale_date,
			parcel_key,
			beds_estimated, baths_estimated, sqft_estimated, year_built_estimated, geo_approximate
		FROM properties`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("PropertyStorageAdapter: failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []domain.Property
	for rows.Next() {
		var p domain.Property
		err := rows.Scan(
			&p.ID, &p.Jurisdiction, &p.SourceKey, &p.CreatedAt, &p.UpdatedAt,
			&p.Address, &p.Municipality, &p.County, &p.Neighborhood, &p.ZipCode, &p.State,
			&p.Latitude, &p.Longitude,
			&p.PropertyType, &p.Beds, &p.Baths, &p.Sqft, &p.YearBuilt,
			&p.AssessedValue, &p.EstimatedValue, &p.PricePerSqft, &p.LastSalePrice, &p.LastSaleDate,
			&p.ParcelKey,
			&p.Provenance.BedsEstimated, &p.Provenance.BathsEstimated, &p.Provenance.SqftEstimated,
			&p.Provenance.YearBuiltEstimated, &p.Provenance.GeoApproximate,
		)
		if err != nil {
			return nil, fmt.Errorf("PropertyStorageAdapter: failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PropertyStorageAdapter: error during properties iteration: %w", err)
	}

	return properties, nil
}

// CountByJurisdiction возвращает количество записей по каждой юрисдикции.
func (a *PropertyStorageAdapter) CountByJurisdiction(ctx context.Context) (map[string]int, error) {
	rows, err := a.pool.Query(ctx, `SELECT jurisdiction, COUNT(*) FROM properties GROUP BY jurisdiction`)
	if err != nil {
		return nil, fmt.Errorf("PropertyStorageAdapter: failed to count properties: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var jurisdiction string
		var count int
		if err := rows.Scan(&jurisdiction, &count); err != nil {
			return nil, fmt.Errorf("PropertyStorageAdapter: failed to scan jurisdiction count: %w", err)
		}
		counts[jurisdiction] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PropertyStorageAdapter: error during count iteration: %w", err)
	}

	return counts, nil
}

package usecase

import (
	"context"
	"fmt"
	"testing"

	"market-sync-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marketProperty(zip, city, county, hood string, value float64, ppsf *float64) domain.Property {
	return domain.Property{
		ID:             uuid.New(),
		Jurisdiction:   "nj",
		SourceKey:      uuid.NewString(),
		ZipCode:        zip,
		Municipality:   city,
		County:         county,
		Neighborhood:   hood,
		State:          "NJ",
		EstimatedValue: value,
		PricePerSqft:   ppsf,
	}
}

func ppsfOf(v float64) *float64 { return &v }

func TestBuildZipAggregates(t *testing.T) {
	t.Run("groups below the minimum sample are not materialized", func(t *testing.T) {
		properties := []domain.Property{
			marketProperty("07102", "Newark", "Essex", "", 400000, nil),
			marketProperty("07102", "Newark", "Essex", "", 500000, nil),
			marketProperty("07102", "Newark", "Essex", "", 650000, nil),
			marketProperty("07030", "Hoboken", "Hudson", "", 900000, nil),
			marketProperty("07030", "Hoboken", "Hudson", "", 950000, nil),
		}

		aggs := BuildZipAggregates(properties)

		require.Len(t, aggs, 1)
		assert.Equal(t, "07102", aggs[0].Row.GeoID)
		assert.Equal(t, 3, aggs[0].Row.SampleCount)
	})

	t.Run("computes percentile triple for the group", func(t *testing.T) {
		properties := []domain.Property{
			marketProperty("07102", "Newark", "Essex", "Ironbound", 400000, ppsfOf(250)),
			marketProperty("07102", "Newark", "Essex", "Ironbound", 500000, ppsfOf(300)),
			marketProperty("07102", "Newark", "Essex", "Ironbound", 650000, nil),
		}

		aggs := BuildZipAggregates(properties)

		require.Len(t, aggs, 1)
		row := aggs[0].Row
		assert.Equal(t, domain.GeoTypeZip, row.GeoType)
		assert.Equal(t, "NJ", row.State)
		assert.InDelta(t, 450000, row.PriceP25, 1e-9)
		assert.InDelta(t, 500000, row.PriceMedian, 1e-9)
		assert.InDelta(t, 575000, row.PriceP75, 1e-9)

		// Цена за кв. фут известна не у всех, ее выборка меньше
		assert.Equal(t, 2, row.PpsfSampleCount)
		assert.InDelta(t, 275, row.PpsfMedian, 1e-9)

		assert.Equal(t, "Newark", aggs[0].City)
		assert.Equal(t, "Essex", aggs[0].County)
		assert.Equal(t, "Ironbound", aggs[0].Neighborhood)
	})

	t.Run("skips records without zip or with non-positive value", func(t *testing.T) {
		properties := []domain.Property{
			marketProperty("", "Newark", "Essex", "", 400000, nil),
			marketProperty("07102", "Newark", "Essex", "", 0, nil),
			marketProperty("07102", "Newark", "Essex", "", -100, nil),
		}

		assert.Empty(t, BuildZipAggregates(properties))
	})

	t.Run("output is sorted by geo id", func(t *testing.T) {
		var properties []domain.Property
		for _, zip := range []string{"07302", "07102", "07030"} {
			for i := 0; i < 3; i++ {
				properties = append(properties, marketProperty(zip, "x", "y", "", 500000, nil))
			}
		}

		aggs := BuildZipAggregates(properties)

		require.Len(t, aggs, 3)
		assert.Equal(t, "07030", aggs[0].Row.GeoID)
		assert.Equal(t, "07102", aggs[1].Row.GeoID)
		assert.Equal(t, "07302", aggs[2].Row.GeoID)
	})
}

func TestRollUpAggregates(t *testing.T) {
	zipAggs := []ZipAggregate{
		{
			Row: domain.MarketAggregate{
				GeoType: domain.GeoTypeZip, GeoID: "07102", State: "NJ",
				SampleCount: 3, PriceMedian: 500000, PriceP25: 450000, PriceP75: 575000,
			},
			City: "Newark", County: "Essex", Neighborhood: "Ironbound",
		},
		{
			Row: domain.MarketAggregate{
				GeoType: domain.GeoTypeZip, GeoID: "07104", State: "NJ",
				SampleCount: 6, PriceMedian: 350000, PriceP25: 300000, PriceP75: 400000,
			},
			City: "Newark", County: "Essex",
		},
	}

	t.Run("weights zip medians by sample count", func(t *testing.T) {
		rows := RollUpAggregates(zipAggs, domain.GeoTypeCity, 3)

		require.Len(t, rows, 1)
		row := rows[0]
		assert.Equal(t, "nj/newark", row.GeoID)
		assert.Equal(t, 9, row.SampleCount)
		// (500000*3 + 350000*6) / 9 = 400000
		assert.InDelta(t, 400000, row.PriceMedian, 1e-6)
	})

	t.Run("rollup sample count is the sum of zip counts", func(t *testing.T) {
		rows := RollUpAggregates(zipAggs, domain.GeoTypeCounty, 3)

		require.Len(t, rows, 1)
		assert.Equal(t, "nj/essex", rows[0].GeoID)
		assert.Equal(t, 9, rows[0].SampleCount)
	})

	t.Run("zips without the geo attribute are excluded", func(t *testing.T) {
		// Район известен только у первого ZIP'а: 3 сделки, ниже порога 5
		rows := RollUpAggregates(zipAggs, domain.GeoTypeNeighborhood, 5)
		assert.Empty(t, rows)

		rows = RollUpAggregates(zipAggs, domain.GeoTypeNeighborhood, 3)
		require.Len(t, rows, 1)
		assert.Equal(t, "nj/ironbound", rows[0].GeoID)
		assert.Equal(t, 3, rows[0].SampleCount)
	})
}

func TestRefreshAggregatesExecute(t *testing.T) {
	newProperties := func() *fakePropertyStorage {
		props := newFakePropertyStorage()
		var batch []domain.Property
		for i := 0; i < 4; i++ {
			batch = append(batch, marketProperty("07102", "Newark", "Essex", "Ironbound", 400000+float64(i)*50000, nil))
		}
		for i := 0; i < 3; i++ {
			batch = append(batch, marketProperty("07030", "Hoboken", "Hudson", "", 900000, nil))
		}
		_, err := props.BatchUpsert(context.Background(), batch)
		require.NoError(t, err)
		return props
	}

	t.Run("replaces every geo level", func(t *testing.T) {
		aggStore := newFakeAggregateStorage()
		uc := NewRefreshAggregatesUseCase(newProperties(), aggStore)

		total, err := uc.Execute(context.Background())

		require.NoError(t, err)
		assert.Len(t, aggStore.levels[domain.GeoTypeZip], 2)
		assert.Len(t, aggStore.levels[domain.GeoTypeCity], 2)
		assert.Len(t, aggStore.levels[domain.GeoTypeCounty], 2)
		// Район есть только у Ньюаркских записей: 4 сделки, ниже порога 5
		assert.Empty(t, aggStore.levels[domain.GeoTypeNeighborhood])
		assert.Equal(t, 6, total)
	})

	t.Run("failed level does not block the others", func(t *testing.T) {
		aggStore := newFakeAggregateStorage()
		aggStore.errFor = map[string]error{domain.GeoTypeCity: fmt.Errorf("deadlock detected")}
		uc := NewRefreshAggregatesUseCase(newProperties(), aggStore)

		total, err := uc.Execute(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), domain.GeoTypeCity)
		assert.Len(t, aggStore.levels[domain.GeoTypeZip], 2)
		assert.Len(t, aggStore.levels[domain.GeoTypeCounty], 2)
		assert.Equal(t, 4, total)
	})

	t.Run("rerun over unchanged data converges", func(t *testing.T) {
		aggStore := newFakeAggregateStorage()
		props := newProperties()
		uc := NewRefreshAggregatesUseCase(props, aggStore)

		first, err := uc.Execute(context.Background())
		require.NoError(t, err)
		second, err := uc.Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		count, err := aggStore.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, count)
	})
}

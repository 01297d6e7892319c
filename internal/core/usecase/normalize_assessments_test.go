package usecase

import (
	"context"
	"testing"
	"time"

	"market-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func int16Ptr(v int16) *int16 { return &v }

func TestNormalizeAssessments_FullRecord(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	raw := []domain.RawAssessment{{
		SourceKey:     "0714-00012-0003",
		Address:       "125 Market St",
		Municipality:  "NEWARK",
		County:        "ESSEX",
		District:      "Ironbound",
		ZipCode:       "07102",
		LandUseCode:   "2",
		AssessedValue: "$350,000",
		LastSalePrice: "410000",
		LastSaleDate:  "2021-05-10",
		Beds:          int16Ptr(4),
		Baths:         float64Ptr(2.5),
		Sqft:          float64Ptr(1750),
		YearBuilt:     int16Ptr(1928),
		Latitude:      float64Ptr(40.7369),
		Longitude:     float64Ptr(-74.1650),
		ParcelKey:     "0714-00012-0003",
	}}

	properties, errs := uc.Execute(context.Background(), raw, "nj")

	require.Empty(t, errs)
	require.Len(t, properties, 1)
	p := properties[0]

	assert.NotEqual(t, "", p.ID.String())
	assert.Equal(t, "nj", p.Jurisdiction)
	assert.Equal(t, "0714-00012-0003", p.SourceKey)
	assert.Equal(t, "Newark", p.Municipality)
	assert.Equal(t, "Essex", p.County)
	assert.Equal(t, "Ironbound", p.Neighborhood)
	assert.Equal(t, "NJ", p.State)
	assert.Equal(t, domain.PropertyTypeSingleFamily, p.PropertyType)

	assert.InDelta(t, 350000, p.AssessedValue, 1e-9)
	// Оценочная стоимость * equalization ratio NJ
	assert.InDelta(t, 350000*1.142, p.EstimatedValue, 1e-6)
	require.NotNil(t, p.PricePerSqft)
	assert.InDelta(t, 350000*1.142/1750, *p.PricePerSqft, 1e-6)

	require.NotNil(t, p.LastSalePrice)
	assert.InDelta(t, 410000, *p.LastSalePrice, 1e-9)
	require.NotNil(t, p.LastSaleDate)
	assert.Equal(t, time.Date(2021, 5, 10, 0, 0, 0, 0, time.UTC), *p.LastSaleDate)

	assert.Equal(t, 40.7369, p.Latitude)

	// Все поля пришли из источника, синтеза не было
	assert.False(t, p.Provenance.SqftEstimated)
	assert.False(t, p.Provenance.BedsEstimated)
	assert.False(t, p.Provenance.BathsEstimated)
	assert.False(t, p.Provenance.YearBuiltEstimated)
	assert.False(t, p.Provenance.GeoApproximate)
}

func TestNormalizeAssessments_SynthesizedFields(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	raw := []domain.RawAssessment{{
		SourceKey:     "k1",
		Municipality:  "Newark",
		LandUseCode:   "2",
		AssessedValue: "200000",
	}}

	properties, errs := uc.Execute(context.Background(), raw, "nj")

	require.Empty(t, errs)
	require.Len(t, properties, 1)
	p := properties[0]

	require.NotNil(t, p.Sqft)
	assert.Equal(t, 1000.0, *p.Sqft)
	assert.True(t, p.Provenance.SqftEstimated)

	require.NotNil(t, p.Beds)
	assert.Equal(t, int16(3), *p.Beds)
	assert.True(t, p.Provenance.BedsEstimated)

	require.NotNil(t, p.Baths)
	assert.Equal(t, 1.5, *p.Baths)
	assert.True(t, p.Provenance.BathsEstimated)

	require.NotNil(t, p.YearBuilt)
	assert.Equal(t, int16(1950), *p.YearBuilt)
	assert.True(t, p.Provenance.YearBuiltEstimated)

	// Цена за кв. фут считается и от синтезированной площади
	require.NotNil(t, p.PricePerSqft)
	assert.InDelta(t, 200000*1.142/1000, *p.PricePerSqft, 1e-6)
}

func TestNormalizeAssessments_GeoFallback(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	t.Run("known municipality uses its centroid with jitter", func(t *testing.T) {
		raw := []domain.RawAssessment{{SourceKey: "k1", Municipality: "NEWARK", AssessedValue: "100000"}}

		properties, errs := uc.Execute(context.Background(), raw, "nj")

		require.Empty(t, errs)
		require.Len(t, properties, 1)
		p := properties[0]
		// Центроид Ньюарка плюс фиксированный джиттер стаба
		assert.InDelta(t, 40.7357+0.001, p.Latitude, 1e-9)
		assert.InDelta(t, -74.1724-0.001, p.Longitude, 1e-9)
		assert.True(t, p.Provenance.GeoApproximate)
	})

	t.Run("unknown municipality falls back to the state centroid", func(t *testing.T) {
		raw := []domain.RawAssessment{{SourceKey: "k1", Municipality: "Quahog", AssessedValue: "100000"}}

		properties, errs := uc.Execute(context.Background(), raw, "ct")

		require.Empty(t, errs)
		require.Len(t, properties, 1)
		assert.InDelta(t, 41.6032+0.001, properties[0].Latitude, 1e-9)
		assert.True(t, properties[0].Provenance.GeoApproximate)
	})
}

func TestNormalizeAssessments_PropertyTypeLookup(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	cases := []struct {
		jurisdiction string
		code         string
		want         string
	}{
		{"nj", "2", domain.PropertyTypeSingleFamily},
		{"nj", "4c", domain.PropertyTypeMultiFamily}, // код нормализуется к верхнему регистру
		{"ct", "102", domain.PropertyTypeCondo},
		{"ct", "999", domain.PropertyTypeOther},
		{"nj", "", domain.PropertyTypeOther},
	}
	for _, tc := range cases {
		raw := []domain.RawAssessment{{SourceKey: "k", AssessedValue: "100000", LandUseCode: tc.code}}
		properties, errs := uc.Execute(context.Background(), raw, tc.jurisdiction)
		require.Empty(t, errs)
		require.Len(t, properties, 1)
		assert.Equal(t, tc.want, properties[0].PropertyType, "%s/%s", tc.jurisdiction, tc.code)
	}
}

func TestNormalizeAssessments_BadRecordsDoNotAbortBatch(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	raw := []domain.RawAssessment{
		{SourceKey: "", AssessedValue: "100000"},        // нет ключа
		{SourceKey: "k2", AssessedValue: "not a price"}, // нечисловая стоимость
		{SourceKey: "k3", AssessedValue: "-5"},          // отрицательная стоимость
		{SourceKey: "k4", AssessedValue: "250000"},
	}

	properties, errs := uc.Execute(context.Background(), raw, "nj")

	require.Len(t, properties, 1)
	assert.Equal(t, "k4", properties[0].SourceKey)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "source key")
	assert.Contains(t, errs[1].Error(), "k2")
	assert.Contains(t, errs[2].Error(), "k3")
}

func TestNormalizeAssessments_OptionalSaleFieldsAreLenient(t *testing.T) {
	uc := NewNormalizeAssessmentsUseCase(stubEstimationPolicy{})

	raw := []domain.RawAssessment{{
		SourceKey:     "k1",
		AssessedValue: "100000",
		LastSalePrice: "n/a",
		LastSaleDate:  "05/10/2021", // не ISO, игнорируется
	}}

	properties, errs := uc.Execute(context.Background(), raw, "nj")

	require.Empty(t, errs)
	require.Len(t, properties, 1)
	assert.Nil(t, properties[0].LastSalePrice)
	assert.Nil(t, properties[0].LastSaleDate)
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$1,234,500", 1234500, false},
		{"1234500.00", 1234500, false},
		{" 350 000 ", 350000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-100", 0, true},
	}
	for _, tc := range cases {
		got, err := parseMoney(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

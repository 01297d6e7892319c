package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
)

// Политика минимального размера выборки: группы меньше этих порогов
// не материализуются, чтобы не публиковать нестабильную статистику.
const (
	minZipSampleSize          = 3
	minNeighborhoodSampleSize = 5
)

// RefreshAggregatesUseCase считает перцентильную статистику рынка по ZIP
// и сворачивает ее на город, округ и район. Каждый уровень заменяется
// снапшотом целиком.
type RefreshAggregatesUseCase struct {
	properties port.PropertyStoragePort
	aggregates port.AggregateStoragePort
}

// NewRefreshAggregatesUseCase создает новый экземпляр use case.
func NewRefreshAggregatesUseCase(properties port.PropertyStoragePort, aggregates port.AggregateStoragePort) *RefreshAggregatesUseCase {
	return &RefreshAggregatesUseCase{
		properties: properties,
		aggregates: aggregates,
	}
}

// Execute пересчитывает все уровни. Ошибка замены одного уровня не мешает
// остальным: уровень останется пустым или устаревшим до следующего прогона,
// который идемпотентно его перезапишет. Возвращается количество успешно
// сохраненных строк и объединенная ошибка по несохраненным уровням.
func (uc *RefreshAggregatesUseCase) Execute(ctx context.Context) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "RefreshAggregates"})

	properties, err := uc.properties.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load properties: %w", err)
	}

	zipAggs := BuildZipAggregates(properties)

	// Более крупные уровни сворачиваются из ZIP-результатов, а не считаются
	// заново из сырых записей. Медиана уровня - средняя по медианам его
	// ZIP'ов, взвешенная количеством сделок. Это документированное
	// статистическое приближение, не настоящий merge распределений.
	levels := []struct {
		geoType string
		rows    []domain.MarketAggregate
	}{
		{domain.GeoTypeZip, zipRowsOf(zipAggs)},
		{domain.GeoTypeCity, RollUpAggregates(zipAggs, domain.GeoTypeCity, minZipSampleSize)},
		{domain.GeoTypeCounty, RollUpAggregates(zipAggs, domain.GeoTypeCounty, minZipSampleSize)},
		{domain.GeoTypeNeighborhood, RollUpAggregates(zipAggs, domain.GeoTypeNeighborhood, minNeighborhoodSampleSize)},
	}

	total := 0
	var levelErrs []error
	for _, level := range levels {
		saved, err := uc.aggregates.ReplaceForGeoType(ctx, level.geoType, level.rows)
		if err != nil {
			ucLogger.Error("Failed to replace aggregate level, leaving it stale until next run", err, port.Fields{
				"geo_type": level.geoType,
			})
			levelErrs = append(levelErrs, fmt.Errorf("level %s: %w", level.geoType, err))
			continue
		}
		total += saved
		ucLogger.Info("Aggregate level replaced", port.Fields{
			"geo_type": level.geoType,
			"rows":     saved,
		})
	}

	return total, errors.Join(levelErrs...)
}

// ZipAggregate - агрегат ZIP-уровня вместе с привязкой к более крупным
// географиям. Привязка нужна только свертке и в таблицу не пишется.
type ZipAggregate struct {
	Row domain.MarketAggregate

	City         string
	County       string
	Neighborhood string
}

type zipGroup struct {
	state        string
	city         string
	county       string
	neighborhood string

	prices []float64
	ppsf   []float64
}

// BuildZipAggregates считает статистику самого мелкого уровня напрямую из
// канонических записей. Группы меньше minZipSampleSize не материализуются.
func BuildZipAggregates(properties []domain.Property) []ZipAggregate {
	groups := make(map[string]*zipGroup)

	for _, prop := range properties {
		if prop.ZipCode == "" || prop.EstimatedValue <= 0 {
			continue
		}

		g, ok := groups[prop.ZipCode]
		if !ok {
			g = &zipGroup{}
			groups[prop.ZipCode] = g
		}

		g.prices = append(g.prices, prop.EstimatedValue)
		if prop.PricePerSqft != nil {
			g.ppsf = append(g.ppsf, *prop.PricePerSqft)
		}

		// Геопривязка группы: первое непустое значение. ZIP-коды в наших
		// фидах не пересекают границы городов, конфликтов не ждем.
		if g.city == "" {
			g.city = prop.Municipality
		}
		if g.county == "" {
			g.county = prop.County
		}
		if g.neighborhood == "" {
			g.neighborhood = prop.Neighborhood
		}
		if g.state == "" {
			g.state = prop.State
		}
	}

	now := time.Now().UTC()
	aggs := make([]ZipAggregate, 0, len(groups))
	for zip, g := range groups {
		if len(g.prices) < minZipSampleSize {
			continue
		}

		row := domain.MarketAggregate{
			GeoType:     domain.GeoTypeZip,
			GeoID:       zip,
			State:       g.state,
			SampleCount: len(g.prices),
			ComputedAt:  now,
		}
		row.PriceP25, row.PriceMedian, row.PriceP75 = percentileTriple(g.prices)

		if len(g.ppsf) > 0 {
			row.PpsfSampleCount = len(g.ppsf)
			row.PpsfP25, row.PpsfMedian, row.PpsfP75 = percentileTriple(g.ppsf)
		}

		aggs = append(aggs, ZipAggregate{
			Row:          row,
			City:         g.city,
			County:       g.county,
			Neighborhood: g.neighborhood,
		})
	}

	// Стабильный порядок нужен для воспроизводимых снапшотов и тестов
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].Row.GeoID < aggs[j].Row.GeoID })
	return aggs
}

func zipRowsOf(aggs []ZipAggregate) []domain.MarketAggregate {
	rows := make([]domain.MarketAggregate, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, a.Row)
	}
	return rows
}

type rollupGroup struct {
	state string

	sampleCount int
	priceP25    float64 // взвешенные суммы до финального деления
	priceMedian float64
	priceP75    float64

	ppsfSampleCount int
	ppsfP25         float64
	ppsfMedian      float64
	ppsfP75         float64
}

// RollUpAggregates сворачивает ZIP-агрегаты на уровень geoType.
// Перцентили уровня - средние от перцентилей составляющих ZIP'ов,
// взвешенные количеством сделок (приближение, см. Execute).
// Группы с суммарной выборкой меньше minSample не материализуются.
func RollUpAggregates(zipAggs []ZipAggregate, geoType string, minSample int) []domain.MarketAggregate {
	groups := make(map[string]*rollupGroup)

	for _, za := range zipAggs {
		name := rollupKeyFor(za, geoType)
		if name == "" {
			continue
		}

		key := geoID(za.Row.State, name)
		g, ok := groups[key]
		if !ok {
			g = &rollupGroup{state: za.Row.State}
			groups[key] = g
		}

		w := float64(za.Row.SampleCount)
		g.sampleCount += za.Row.SampleCount
		g.priceP25 += za.Row.PriceP25 * w
		g.priceMedian += za.Row.PriceMedian * w
		g.priceP75 += za.Row.PriceP75 * w

		if za.Row.PpsfSampleCount > 0 {
			pw := float64(za.Row.PpsfSampleCount)
			g.ppsfSampleCount += za.Row.PpsfSampleCount
			g.ppsfP25 += za.Row.PpsfP25 * pw
			g.ppsfMedian += za.Row.PpsfMedian * pw
			g.ppsfP75 += za.Row.PpsfP75 * pw
		}
	}

	now := time.Now().UTC()
	rows := make([]domain.MarketAggregate, 0, len(groups))
	for key, g := range groups {
		if g.sampleCount < minSample {
			continue
		}

		w := float64(g.sampleCount)
		row := domain.MarketAggregate{
			GeoType:     geoType,
			GeoID:       key,
			State:       g.state,
			SampleCount: g.sampleCount,
			PriceP25:    g.priceP25 / w,
			PriceMedian: g.priceMedian / w,
			PriceP75:    g.priceP75 / w,
			ComputedAt:  now,
		}

		if g.ppsfSampleCount > 0 {
			pw := float64(g.ppsfSampleCount)
			row.PpsfSampleCount = g.ppsfSampleCount
			row.PpsfP25 = g.ppsfP25 / pw
			row.PpsfMedian = g.ppsfMedian / pw
			row.PpsfP75 = g.ppsfP75 / pw
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].GeoID < rows[j].GeoID })
	return rows
}

// rollupKeyFor возвращает имя географической единицы уровня geoType,
// к которой принадлежит ZIP-агрегат. Пустая строка исключает ZIP из свертки.
func rollupKeyFor(za ZipAggregate, geoType string) string {
	switch geoType {
	case domain.GeoTypeCity:
		return za.City
	case domain.GeoTypeCounty:
		return za.County
	case domain.GeoTypeNeighborhood:
		return za.Neighborhood
	default:
		return ""
	}
}

// geoID строит устойчивый идентификатор единицы: "nj/jersey city".
func geoID(state, name string) string {
	return strings.ToLower(strings.TrimSpace(state)) + "/" + strings.ToLower(strings.TrimSpace(name))
}

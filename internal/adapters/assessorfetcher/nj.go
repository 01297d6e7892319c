package assessorfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"market-sync-service/internal/constants"
	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
)

// njRow - строка фида MOD-IV штата Нью-Джерси.
type njRow struct {
	PamsPin       string `json:"pams_pin"`
	PropertyLoc   string `json:"property_location"`
	CityName      string `json:"city_name"`
	CountyName    string `json:"county_name"`
	ZipCode       string `json:"zip_code"`
	PropertyClass string `json:"property_class"`
	NetValue      string `json:"net_value"`
	SalePrice     string `json:"sale_price"`
	DeedDate      string `json:"deed_date"`
	BuildingSqft  string `json:"building_sq_ft"`
	YearBuilt     string `json:"year_constructed"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	UpdatedAt     string `json:"updated_at"`
}

// NJAssessorFetcherAdapter выбирает записи оценщика Нью-Джерси (MOD-IV).
type NJAssessorFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewNJAssessorFetcherAdapter - конструктор
func NewNJAssessorFetcherAdapter(baseURL string) (*NJAssessorFetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &NJAssessorFetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *NJAssessorFetcherAdapter) Jurisdiction() string {
	return constants.JurisdictionNJ
}

func (a *NJAssessorFetcherAdapter) FetchAssessments(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawAssessment, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "NJAssessorFetcherAdapter"})

	var assessments []domain.RawAssessment

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := buildPageURL(a.baseURL, "updated_at", window.From, size, offset)
		if err != nil {
			return assessments, fmt.Errorf("nj assessor adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching NJ assessments page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return assessments, fmt.Errorf("nj assessor adapter: %w", err)
		}

		var rows []njRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return assessments, fmt.Errorf("nj assessor adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			if row.PamsPin == "" {
				continue
			}
			assessments = append(assessments, a.toRawAssessment(row))
		}

		if len(rows) < size {
			break
		}

		select {
		case <-ctx.Done():
			return assessments, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	logger.Info("NJ assessments fetched", port.Fields{"count": len(assessments)})
	return assessments, nil
}

func (a *NJAssessorFetcherAdapter) toRawAssessment(row njRow) domain.RawAssessment {
	return domain.RawAssessment{
		Jurisdiction:  constants.JurisdictionNJ,
		SourceKey:     strings.TrimSpace(row.PamsPin),
		Address:       strings.TrimSpace(row.PropertyLoc),
		Municipality:  strings.TrimSpace(row.CityName),
		County:        strings.TrimSpace(row.CountyName),
		ZipCode:       strings.TrimSpace(row.ZipCode),
		LandUseCode:   strings.ToUpper(strings.TrimSpace(row.PropertyClass)),
		AssessedValue: row.NetValue,
		LastSalePrice: row.SalePrice,
		LastSaleDate:  row.DeedDate,
		Sqft:          parseOptionalFloat(row.BuildingSqft),
		YearBuilt:     parseOptionalInt16(row.YearBuilt),
		Latitude:      parseOptionalCoord(row.Latitude),
		Longitude:     parseOptionalCoord(row.Longitude),

		// PAMS PIN и есть ключ участка в NJ
		ParcelKey: strings.TrimSpace(row.PamsPin),
	}
}

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

// ctRow - строка фида оценок Коннектикута. Фид богаче, чем NJ: отдает
// спальни, санузлы и район.
type ctRow struct {
	ParcelID       string `json:"parcel_id"`
	LocationStreet string `json:"location"`
	TownName       string `json:"town_name"`
	CountyName     string `json:"county"`
	Neighborhood   string `json:"neighborhood"`
	ZipCode        string `json:"zip"`
	StateUseCode   string `json:"state_use_code"`
	AssessedTotal  string `json:"assessed_total"`
	SaleAmount     string `json:"sale_amount"`
	SaleDate       string `json:"sale_date"`
	Bedrooms       string `json:"number_of_bedrooms"`
	Bathrooms      string `json:"number_of_baths"`
	LivingArea     string `json:"living_area"`
	YearBuilt      string `json:"ayb"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	UpdatedAt      string `json:"last_update"`
}

// CTAssessorFetcherAdapter выбирает записи оценщика Коннектикута.
type CTAssessorFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewCTAssessorFetcherAdapter - конструктор
func NewCTAssessorFetcherAdapter(baseURL string) (*CTAssessorFetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &CTAssessorFetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *CTAssessorFetcherAdapter) Jurisdiction() string {
	return constants.JurisdictionCT
}

func (a *CTAssessorFetcherAdapter) FetchAssessments(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawAssessment, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "CTAssessorFetcherAdapter"})

	var assessments []domain.RawAssessment

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := buildPageURL(a.baseURL, "last_update", window.From, size, offset)
		if err != nil {
			return assessments, fmt.Errorf("ct assessor adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching CT assessments page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return assessments, fmt.Errorf("ct assessor adapter: %w", err)
		}

		var rows []ctRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return assessments, fmt.Errorf("ct assessor adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			if row.ParcelID == "" {
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

	logger.Info("CT assessments fetched", port.Fields{"count": len(assessments)})
	return assessments, nil
}

func (a *CTAssessorFetcherAdapter) toRawAssessment(row ctRow) domain.RawAssessment {
	return domain.RawAssessment{
		Jurisdiction:  constants.JurisdictionCT,
		SourceKey:     strings.TrimSpace(row.ParcelID),
		Address:       strings.TrimSpace(row.LocationStreet),
		Municipality:  strings.TrimSpace(row.TownName),
		County:        strings.TrimSpace(row.CountyName),
		District:      strings.TrimSpace(row.Neighborhood),
		ZipCode:       strings.TrimSpace(row.ZipCode),
		LandUseCode:   strings.TrimSpace(row.StateUseCode),
		AssessedValue: row.AssessedTotal,
		LastSalePrice: row.SaleAmount,
		LastSaleDate:  row.SaleDate,
		Beds:          parseOptionalInt16(row.Bedrooms),
		Baths:         parseOptionalFloat(row.Bathrooms),
		Sqft:          parseOptionalFloat(row.LivingArea),
		YearBuilt:     parseOptionalInt16(row.YearBuilt),
		Latitude:      parseOptionalCoord(row.Latitude),
		Longitude:     parseOptionalCoord(row.Longitude),
		ParcelKey:     strings.TrimSpace(row.ParcelID),
	}
}

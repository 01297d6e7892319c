package civicfetcher

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

// violationRow - строка датасета нарушений DOB. BBL тут отдается готовым.
type violationRow struct {
	ViolationNumber string `json:"number"`
	ViolationStatus string `json:"violation_category"`
	BBL             string `json:"bbl"`
	ViolationType   string `json:"violation_type"`
	IssueDate       string `json:"issue_date"`
}

// ViolationsFetcherAdapter выбирает нарушения строительного кодекса.
type ViolationsFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewViolationsFetcherAdapter - конструктор
func NewViolationsFetcherAdapter(baseURL string) (*ViolationsFetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &ViolationsFetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *ViolationsFetcherAdapter) Source() string {
	return constants.SourceNYCViolations
}

func (a *ViolationsFetcherAdapter) FetchCivicRecords(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawCivicRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "ViolationsFetcherAdapter"})

	var records []domain.RawCivicRecord
	fetchedAt := time.Now().UTC()

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := buildPageURL(a.baseURL, "issue_date", window.From, size, offset)
		if err != nil {
			return records, fmt.Errorf("violations adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching violations page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return records, fmt.Errorf("violations adapter: %w", err)
		}

		var rows []violationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return records, fmt.Errorf("violations adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			if row.ViolationNumber == "" {
				continue
			}

			issuedAt, parseErr := parseSocrataTime(row.IssueDate)
			if parseErr != nil {
				logger.Warn("Failed to parse violation issue date, skipping row", port.Fields{
					"date_string": row.IssueDate,
					"external_id": row.ViolationNumber,
				})
				continue
			}

			// В датасете закрытые нарушения помечены категорией
			// "V*-DOB VIOLATION - Resolved" и подобными
			status := domain.CivicStatusOpen
			if strings.Contains(strings.ToLower(row.ViolationStatus), "resolved") ||
				strings.Contains(strings.ToLower(row.ViolationStatus), "dismissed") {
				status = domain.CivicStatusClosed
			}

			records = append(records, domain.RawCivicRecord{
				Source:      constants.SourceNYCViolations,
				ExternalID:  row.ViolationNumber,
				RecordType:  domain.CivicRecordViolation,
				Status:      status,
				ParcelKey:   strings.TrimSpace(row.BBL),
				Description: row.ViolationType,
				IssuedAt:    issuedAt,
				FetchedAt:   fetchedAt,
			})
		}

		if len(rows) < size {
			break
		}
	}

	logger.Info("Violations fetched", port.Fields{"count": len(records)})
	return records, nil
}

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

// complaintRow - строка датасета жалоб 311.
type complaintRow struct {
	UniqueKey     string `json:"unique_key"`
	CreatedDate   string `json:"created_date"`
	Status        string `json:"status"`
	ComplaintType string `json:"complaint_type"`
	Descriptor    string `json:"descriptor"`
	BBL           string `json:"bbl"`
}

// Complaints311FetcherAdapter выбирает жалобы жителей из портала 311.
type Complaints311FetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewComplaints311FetcherAdapter - конструктор
func NewComplaints311FetcherAdapter(baseURL string) (*Complaints311FetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &Complaints311FetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *Complaints311FetcherAdapter) Source() string {
	return constants.SourceNYC311
}

func (a *Complaints311FetcherAdapter) FetchCivicRecords(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawCivicRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "Complaints311FetcherAdapter"})

	var records []domain.RawCivicRecord
	fetchedAt := time.Now().UTC()

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := buildPageURL(a.baseURL, "created_date", window.From, size, offset)
		if err != nil {
			return records, fmt.Errorf("complaints adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching complaints page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return records, fmt.Errorf("complaints adapter: %w", err)
		}

		var rows []complaintRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return records, fmt.Errorf("complaints adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			if row.UniqueKey == "" {
				continue
			}

			createdAt, parseErr := parseSocrataTime(row.CreatedDate)
			if parseErr != nil {
				logger.Warn("Failed to parse complaint creation date, skipping row", port.Fields{
					"date_string": row.CreatedDate,
					"external_id": row.UniqueKey,
				})
				continue
			}

			status := domain.CivicStatusOpen
			if strings.EqualFold(row.Status, "Closed") {
				status = domain.CivicStatusClosed
			}

			description := row.ComplaintType
			if row.Descriptor != "" {
				description = row.ComplaintType + ": " + row.Descriptor
			}

			records = append(records, domain.RawCivicRecord{
				Source:      constants.SourceNYC311,
				ExternalID:  row.UniqueKey,
				RecordType:  domain.CivicRecordComplaint,
				Status:      status,
				ParcelKey:   strings.TrimSpace(row.BBL),
				Description: description,
				IssuedAt:    createdAt,
				FetchedAt:   fetchedAt,
			})
		}

		if len(rows) < size {
			break
		}
	}

	logger.Info("Complaints fetched", port.Fields{"count": len(records)})
	return records, nil
}

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

// permitRow - строка датасета разрешений DOB, как ее отдает портал.
type permitRow struct {
	JobFilingNumber string `json:"job_filing_number"`
	FilingStatus    string `json:"filing_status"`
	Borough         string `json:"borough"`
	Block           string `json:"block"`
	Lot             string `json:"lot"`
	WorkType        string `json:"work_type"`
	IssuedDate      string `json:"issued_date"`
}

// PermitsFetcherAdapter выбирает разрешения на строительство из портала
// открытых данных NYC.
type PermitsFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewPermitsFetcherAdapter - конструктор
func NewPermitsFetcherAdapter(baseURL string) (*PermitsFetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &PermitsFetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *PermitsFetcherAdapter) Source() string {
	return constants.SourceNYCPermits
}

// FetchCivicRecords выбирает разрешения за окно window постранично,
// пока не наберется limit записей или страницы не кончатся.
// При ошибке возвращает уже собранную часть вместе с ошибкой.
func (a *PermitsFetcherAdapter) FetchCivicRecords(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawCivicRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "PermitsFetcherAdapter"})

	var records []domain.RawCivicRecord
	fetchedAt := time.Now().UTC()

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := buildPageURL(a.baseURL, "issued_date", window.From, size, offset)
		if err != nil {
			return records, fmt.Errorf("permits adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching permits page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return records, fmt.Errorf("permits adapter: %w", err)
		}

		var rows []permitRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return records, fmt.Errorf("permits adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			rec, ok := a.toDomainRecord(row, fetchedAt, logger)
			if ok {
				records = append(records, rec)
			}
		}

		if len(rows) < size {
			break
		}
	}

	logger.Info("Permits fetched", port.Fields{"count": len(records)})
	return records, nil
}

func (a *PermitsFetcherAdapter) toDomainRecord(row permitRow, fetchedAt time.Time, logger port.LoggerPort) (domain.RawCivicRecord, bool) {
	if row.JobFilingNumber == "" {
		return domain.RawCivicRecord{}, false
	}

	issuedAt, err := parseSocrataTime(row.IssuedDate)
	if err != nil {
		logger.Warn("Failed to parse permit issue date, skipping row", port.Fields{
			"date_string": row.IssuedDate,
			"external_id": row.JobFilingNumber,
		})
		return domain.RawCivicRecord{}, false
	}

	status := domain.CivicStatusClosed
	if strings.EqualFold(row.FilingStatus, "Issued") || strings.EqualFold(row.FilingStatus, "Active") {
		status = domain.CivicStatusOpen
	}

	return domain.RawCivicRecord{
		Source:      constants.SourceNYCPermits,
		ExternalID:  row.JobFilingNumber,
		RecordType:  domain.CivicRecordPermit,
		Status:      status,
		ParcelKey:   bblFrom(row.Borough, row.Block, row.Lot),
		Description: row.WorkType,
		IssuedAt:    issuedAt,
		FetchedAt:   fetchedAt,
	}, true
}

// bblFrom собирает ключ участка borough-block-lot из частей, дополняя
// номера нулями до стандартной ширины (1 + 5 + 4 цифры).
func bblFrom(borough, block, lot string) string {
	boroughCode := boroughCodes[strings.ToUpper(strings.TrimSpace(borough))]
	if boroughCode == "" {
		// Некоторые датасеты отдают уже числовой код
		boroughCode = strings.TrimSpace(borough)
	}
	if boroughCode == "" || block == "" || lot == "" {
		return ""
	}
	return fmt.Sprintf("%s%05s%04s", boroughCode, strings.TrimSpace(block), strings.TrimSpace(lot))
}

var boroughCodes = map[string]string{
	"MANHATTAN":     "1",
	"BRONX":         "2",
	"BROOKLYN":      "3",
	"QUEENS":        "4",
	"STATEN ISLAND": "5",
}

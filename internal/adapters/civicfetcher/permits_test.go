package civicfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-sync-service/internal/constants"
	"market-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow() domain.TimeRange {
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimeRange{From: to.AddDate(0, -12, 0), To: to}
}

func TestPermitsFetcher_FetchCivicRecords(t *testing.T) {
	var gotQueries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQueries = append(gotQueries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{
				"job_filing_number": "M00345-P1",
				"filing_status":     "Issued",
				"borough":           "MANHATTAN",
				"block":             "12",
				"lot":               "1",
				"work_type":         "Plumbing",
				"issued_date":       "2026-03-15T00:00:00.000",
			},
			{
				"job_filing_number": "B00789-P1",
				"filing_status":     "Signed Off",
				"borough":           "3",
				"block":             "4521",
				"lot":               "78",
				"work_type":         "General Construction",
				"issued_date":       "2026-02-01T00:00:00",
			},
			{
				// Без внешнего идентификатора, строка отбрасывается
				"filing_status": "Issued",
				"issued_date":   "2026-01-10T00:00:00.000",
			},
			{
				"job_filing_number": "Q00001-P1",
				"filing_status":     "Issued",
				"borough":           "QUEENS",
				"block":             "100",
				"lot":               "5",
				"issued_date":       "not a date",
			},
		})
	}))
	defer server.Close()

	adapter, err := NewPermitsFetcherAdapter(server.URL)
	require.NoError(t, err)

	records, err := adapter.FetchCivicRecords(context.Background(), testWindow(), 50)

	require.NoError(t, err)
	require.Len(t, records, 2, "rows without id or date must be dropped")

	first := records[0]
	assert.Equal(t, constants.SourceNYCPermits, first.Source)
	assert.Equal(t, "M00345-P1", first.ExternalID)
	assert.Equal(t, domain.CivicRecordPermit, first.RecordType)
	assert.Equal(t, domain.CivicStatusOpen, first.Status)
	assert.Equal(t, "1000120001", first.ParcelKey, "BBL is zero-padded borough+block+lot")
	assert.Equal(t, "Plumbing", first.Description)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), first.IssuedAt)

	second := records[1]
	assert.Equal(t, domain.CivicStatusClosed, second.Status)
	// Числовой код боро принимается как есть
	assert.Equal(t, "3045210078", second.ParcelKey)

	// Одна страница: записей меньше запрошенного лимита
	require.Len(t, gotQueries, 1)
	assert.Contains(t, gotQueries[0], "issued_date")
	assert.Contains(t, gotQueries[0], "%24limit=50")
}

// permitPage генерирует полную страницу валидных строк.
func permitPage(pageNo, n int) []map[string]string {
	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = map[string]string{
			"job_filing_number": fmt.Sprintf("P%d-%d", pageNo, i),
			"filing_status":     "Issued",
			"borough":           "MANHATTAN",
			"block":             "12",
			"lot":               "1",
			"issued_date":       "2026-03-15T00:00:00.000",
		}
	}
	return rows
}

func TestPermitsFetcher_PaginatesUntilLimit(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		// Каждая страница полная, выборку останавливает только лимит
		_ = json.NewEncoder(w).Encode(permitPage(requests, pageSize))
	}))
	defer server.Close()

	adapter, err := NewPermitsFetcherAdapter(server.URL)
	require.NoError(t, err)

	records, err := adapter.FetchCivicRecords(context.Background(), testWindow(), pageSize*2)

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Len(t, records, pageSize*2)
}

func TestPermitsFetcher_ServerErrorReturnsPartialResult(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests > 1 {
			http.Error(w, "upstream throttled", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(permitPage(requests, pageSize))
	}))
	defer server.Close()

	adapter, err := NewPermitsFetcherAdapter(server.URL)
	require.NoError(t, err)

	records, err := adapter.FetchCivicRecords(context.Background(), testWindow(), pageSize*2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.NotEmpty(t, records, "already collected pages are returned alongside the error")
}

func TestBBLFrom(t *testing.T) {
	assert.Equal(t, "1000120001", bblFrom("MANHATTAN", "12", "1"))
	assert.Equal(t, "3045210078", bblFrom("3", "4521", "78"))
	assert.Equal(t, "", bblFrom("", "12", "1"))
	assert.Equal(t, "", bblFrom("QUEENS", "", "1"))
}

func TestParseSocrataTime(t *testing.T) {
	withMillis, err := parseSocrataTime("2026-03-15T10:30:00.000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC), withMillis)

	withoutMillis, err := parseSocrataTime("2026-03-15T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, withMillis, withoutMillis)

	_, err = parseSocrataTime("03/15/2026")
	assert.Error(t, err)
}

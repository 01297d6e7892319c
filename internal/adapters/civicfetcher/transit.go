package civicfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"market-sync-service/internal/constants"
	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
)

// stationRow - строка справочника станций метро.
type stationRow struct {
	StationID string `json:"station_id"`
	StopName  string `json:"stop_name"`
	Daytime   string `json:"daytime_routes"`
	Latitude  string `json:"gtfs_latitude"`
	Longitude string `json:"gtfs_longitude"`
}

// TransitFetcherAdapter выбирает станции метро. В отличие от гражданских
// датасетов справочник маленький и без фильтра по дате.
type TransitFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string
}

// NewTransitFetcherAdapter - конструктор
func NewTransitFetcherAdapter(baseURL string) (*TransitFetcherAdapter, error) {
	c, err := newCollector(baseURL)
	if err != nil {
		return nil, err
	}
	return &TransitFetcherAdapter{collector: c, baseURL: baseURL}, nil
}

func (a *TransitFetcherAdapter) Source() string {
	return constants.SourceNYCTransit
}

func (a *TransitFetcherAdapter) FetchTransitStops(ctx context.Context, limit int) ([]domain.TransitStop, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "TransitFetcherAdapter"})

	var stops []domain.TransitStop

	for offset := 0; offset < limit; offset += pageSize {
		size := pageSize
		if remaining := limit - offset; remaining < size {
			size = remaining
		}

		pageURL, err := a.buildStationsURL(size, offset)
		if err != nil {
			return stops, fmt.Errorf("transit adapter: failed to build URL: %w", err)
		}

		logger.Debug("Fetching stations page", port.Fields{"url": pageURL})
		body, err := fetchPage(a.collector, pageURL)
		if err != nil {
			return stops, fmt.Errorf("transit adapter: %w", err)
		}

		var rows []stationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return stops, fmt.Errorf("transit adapter: failed to parse response: %w", err)
		}

		for _, row := range rows {
			stop, ok := a.toDomainStop(row, logger)
			if ok {
				stops = append(stops, stop)
			}
		}

		if len(rows) < size {
			break
		}

		// Троттлинг портала
		select {
		case <-ctx.Done():
			return stops, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	logger.Info("Transit stops fetched", port.Fields{"count": len(stops)})
	return stops, nil
}

func (a *TransitFetcherAdapter) buildStationsURL(limit, offset int) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set(constants.ParamLimit, strconv.Itoa(limit))
	if offset > 0 {
		q.Set("$offset", strconv.Itoa(offset))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *TransitFetcherAdapter) toDomainStop(row stationRow, logger port.LoggerPort) (domain.TransitStop, bool) {
	if row.StationID == "" {
		return domain.TransitStop{}, false
	}

	lat, latErr := strconv.ParseFloat(row.Latitude, 64)
	lng, lngErr := strconv.ParseFloat(row.Longitude, 64)
	if latErr != nil || lngErr != nil {
		logger.Warn("Station has unparseable coordinates, skipping", port.Fields{
			"external_id": row.StationID,
		})
		return domain.TransitStop{}, false
	}

	return domain.TransitStop{
		ExternalID: row.StationID,
		Name:       row.StopName,
		Lines:      row.Daytime,
		Latitude:   lat,
		Longitude:  lng,
	}, true
}

package assessorfetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"market-sync-service/internal/constants"
)

// Размер одной страницы при выборке из фида оценщика.
const pageSize = 1000

// Формат floating timestamp у Socrata-совместимых порталов.
const assessorTimeLayout = "2006-01-02T15:04:05.000"

// newCollector создает родительский коллектор для одного фида.
func newCollector(baseURL string) (*colly.Collector, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("assessorfetcher: invalid base URL %q: %w", baseURL, err)
	}

	// Хост без порта: colly сверяет разрешенные домены по hostname
	c := colly.NewCollector(colly.AllowedDomains(u.Hostname()), colly.AllowURLRevisit())

	err = c.Limit(&colly.LimitRule{
		DomainGlob:  u.Hostname() + "*",
		Parallelism: 1,
		RandomDelay: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("assessorfetcher: failed to set limit rule: %w", err)
	}

	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	return c, nil
}

// buildPageURL строит URL одной страницы с фильтром по дате обновления.
func buildPageURL(baseURL, dateField string, from time.Time, limit, offset int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set(constants.ParamWhere, fmt.Sprintf("%s >= '%s'", dateField, from.Format(assessorTimeLayout)))
	q.Set(constants.ParamOrder, dateField+" DESC")
	q.Set(constants.ParamLimit, strconv.Itoa(limit))
	if offset > 0 {
		q.Set("$offset", strconv.Itoa(offset))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchPage выполняет один GET через одноразовый клон коллектора.
func fetchPage(parent *colly.Collector, pageURL string) ([]byte, error) {
	collector := parent.Clone()

	var body []byte
	var responseErr error

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		responseErr = fmt.Errorf("request to %s failed (status %d): %w", pageURL, r.StatusCode, err)
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	collector.Wait()

	if responseErr != nil {
		return nil, responseErr
	}
	return body, nil
}

// parseOptionalInt16 разбирает числовое поле фида, пустую строку и мусор
// превращает в nil.
func parseOptionalInt16(s string) *int16 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil || v <= 0 {
		return nil
	}
	out := int16(v)
	return &out
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// parseOptionalCoord отличается от parseOptionalFloat тем, что допускает
// отрицательные значения (долгота восточного побережья отрицательная).
func parseOptionalCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

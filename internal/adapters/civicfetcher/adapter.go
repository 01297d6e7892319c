package civicfetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"market-sync-service/internal/constants"
)

// Размер одной страницы при выборке из Socrata-портала.
const pageSize = 1000

// Формат floating timestamp у Socrata.
const socrataTimeLayout = "2006-01-02T15:04:05.000"

// newCollector создает родительский коллектор для одного портала открытых
// данных. Лимиты и заголовки наследуются всеми клонами.
func newCollector(baseURL string) (*colly.Collector, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("civicfetcher: invalid base URL %q: %w", baseURL, err)
	}

	// Хост без порта: colly сверяет разрешенные домены по hostname
	c := colly.NewCollector(colly.AllowedDomains(u.Hostname()), colly.AllowURLRevisit())

	err = c.Limit(&colly.LimitRule{
		DomainGlob: u.Hostname() + "*",

		// Параллелизм на уровне HTTP-запросов
		Parallelism: 1,

		// задержка до секунды между запросами, чтобы не упереться в троттлинг
		RandomDelay: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("civicfetcher: failed to set limit rule: %w", err)
	}

	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	return c, nil
}

// buildPageURL строит URL одной страницы выборки с фильтром по дате.
func buildPageURL(baseURL, dateField string, from time.Time, limit, offset int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set(constants.ParamWhere, fmt.Sprintf("%s >= '%s'", dateField, from.Format(socrataTimeLayout)))
	q.Set(constants.ParamOrder, dateField+" DESC")
	q.Set(constants.ParamLimit, strconv.Itoa(limit))
	if offset > 0 {
		q.Set("$offset", strconv.Itoa(offset))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchPage выполняет один GET через одноразовый клон коллектора и
// возвращает тело ответа. Не-200 ответ приходит как ошибка из OnError.
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

// parseSocrataTime разбирает дату Socrata, допуская вариант без миллисекунд.
func parseSocrataTime(s string) (time.Time, error) {
	if t, err := time.Parse(socrataTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

package usecase

import (
	"context"
	"sync"
	"time"

	"market-sync-service/internal/core/domain"

	"github.com/google/uuid"
)

// In-memory реализации портов хранилища. Потокобезопасны: координатор
// гоняет доменные задачи параллельно.

type fakePropertyStorage struct {
	mu    sync.Mutex
	items map[string]domain.Property // ключ: jurisdiction|source_key

	upsertErr error
	listErr   error
	countErr  error
}

func newFakePropertyStorage() *fakePropertyStorage {
	return &fakePropertyStorage{items: make(map[string]domain.Property)}
}

func (s *fakePropertyStorage) BatchUpsert(_ context.Context, properties []domain.Property) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range properties {
		key := p.Jurisdiction + "|" + p.SourceKey
		// При конфликте ключа строка сохраняет исходный id, как и merge
		// в адаптере: сигналы привязаны к property_id между прогонами.
		if existing, ok := s.items[key]; ok {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		}
		s.items[key] = p
	}
	return len(properties), nil
}

func (s *fakePropertyStorage) ListAll(_ context.Context) ([]domain.Property, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Property, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakePropertyStorage) CountByJurisdiction(_ context.Context) (map[string]int, error) {
	if s.countErr != nil {
		return nil, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range s.items {
		counts[p.Jurisdiction]++
	}
	return counts, nil
}

type fakeCivicStorage struct {
	mu      sync.Mutex
	records map[string]domain.RawCivicRecord // ключ: source|external_id

	insertErr error
	countErr  error
}

func newFakeCivicStorage() *fakeCivicStorage {
	return &fakeCivicStorage{records: make(map[string]domain.RawCivicRecord)}
}

func (s *fakeCivicStorage) BatchInsertIgnore(_ context.Context, records []domain.RawCivicRecord) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, r := range records {
		key := r.Source + "|" + r.ExternalID
		if _, exists := s.records[key]; exists {
			continue
		}
		s.records[key] = r
		inserted++
	}
	return inserted, nil
}

func (s *fakeCivicStorage) CountBySource(_ context.Context) (map[string]int, error) {
	if s.countErr != nil {
		return nil, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range s.records {
		counts[r.Source]++
	}
	return counts, nil
}

func (s *fakeCivicStorage) OpenViolationCountsByParcel(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range s.records {
		if r.RecordType == domain.CivicRecordViolation && r.Status == domain.CivicStatusOpen && r.ParcelKey != "" {
			counts[r.ParcelKey]++
		}
	}
	return counts, nil
}

func (s *fakeCivicStorage) RecentComplaintCountsByParcel(_ context.Context, since time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range s.records {
		if r.RecordType == domain.CivicRecordComplaint && r.ParcelKey != "" && !r.IssuedAt.Before(since) {
			counts[r.ParcelKey]++
		}
	}
	return counts, nil
}

type fakeTransitStorage struct {
	mu    sync.Mutex
	stops []domain.TransitStop

	replaceErr error
}

func (s *fakeTransitStorage) ReplaceAll(_ context.Context, stops []domain.TransitStop) (int, error) {
	if s.replaceErr != nil {
		return 0, s.replaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops = append([]domain.TransitStop(nil), stops...)
	return len(stops), nil
}

func (s *fakeTransitStorage) ListAll(_ context.Context) ([]domain.TransitStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TransitStop(nil), s.stops...), nil
}

func (s *fakeTransitStorage) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops), nil
}

type fakeSignalStorage struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.PropertySignalSummary

	upsertErr error
}

func newFakeSignalStorage() *fakeSignalStorage {
	return &fakeSignalStorage{rows: make(map[uuid.UUID]domain.PropertySignalSummary)}
}

func (s *fakeSignalStorage) BatchUpsert(_ context.Context, summaries []domain.PropertySignalSummary) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range summaries {
		s.rows[row.PropertyID] = row
	}
	return len(summaries), nil
}

func (s *fakeSignalStorage) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

type fakeAggregateStorage struct {
	mu     sync.Mutex
	levels map[string][]domain.MarketAggregate // ключ: geo_type

	// errFor позволяет уронить замену одного конкретного уровня
	errFor map[string]error
}

func newFakeAggregateStorage() *fakeAggregateStorage {
	return &fakeAggregateStorage{levels: make(map[string][]domain.MarketAggregate)}
}

func (s *fakeAggregateStorage) ReplaceForGeoType(_ context.Context, geoType string, rows []domain.MarketAggregate) (int, error) {
	if err := s.errFor[geoType]; err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[geoType] = append([]domain.MarketAggregate(nil), rows...)
	return len(rows), nil
}

func (s *fakeAggregateStorage) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, rows := range s.levels {
		total += len(rows)
	}
	return total, nil
}

type fakeMetaStorage struct {
	mu    sync.Mutex
	metas map[string]domain.DataSourceMeta

	upsertErr error
}

func newFakeMetaStorage() *fakeMetaStorage {
	return &fakeMetaStorage{metas: make(map[string]domain.DataSourceMeta)}
}

func (s *fakeMetaStorage) Upsert(_ context.Context, meta domain.DataSourceMeta) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.Source] = meta
	return nil
}

func (s *fakeMetaStorage) Get(_ context.Context, source string) (*domain.DataSourceMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[source]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

// Фикстурные фетчеры. Счетчик вызовов нужен тестам порогов свежести.

type stubCivicFetcher struct {
	source  string
	records []domain.RawCivicRecord
	err     error
	panics  bool

	mu    sync.Mutex
	calls int
}

func (f *stubCivicFetcher) Source() string { return f.source }

func (f *stubCivicFetcher) FetchCivicRecords(_ context.Context, _ domain.TimeRange, _ int) ([]domain.RawCivicRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("connection pool exhausted")
	}
	return f.records, f.err
}

func (f *stubCivicFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubTransitFetcher struct {
	source string
	stops  []domain.TransitStop
	err    error
}

func (f *stubTransitFetcher) Source() string { return f.source }

func (f *stubTransitFetcher) FetchTransitStops(_ context.Context, _ int) ([]domain.TransitStop, error) {
	return f.stops, f.err
}

type stubAssessorFetcher struct {
	jurisdiction string
	raw          []domain.RawAssessment
	err          error

	mu    sync.Mutex
	calls int
}

func (f *stubAssessorFetcher) Jurisdiction() string { return f.jurisdiction }

func (f *stubAssessorFetcher) FetchAssessments(_ context.Context, _ domain.TimeRange, _ int) ([]domain.RawAssessment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.raw, f.err
}

func (f *stubAssessorFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubReportQueue struct {
	mu        sync.Mutex
	published []domain.SyncReport
	err       error
}

func (q *stubReportQueue) PublishReport(_ context.Context, report domain.SyncReport) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, report)
	return nil
}

// stubEstimationPolicy возвращает фиксированные значения, чтобы тесты
// нормализатора могли сверять точные числа.
type stubEstimationPolicy struct{}

func (stubEstimationPolicy) EstimateSqft(string) float64 { return 1000 }

func (stubEstimationPolicy) EstimateBeds(string, *float64) int16 { return 3 }

func (stubEstimationPolicy) EstimateBaths(string, int16) float64 { return 1.5 }

func (stubEstimationPolicy) EstimateYearBuilt(string) int16 { return 1950 }

func (stubEstimationPolicy) JitterCoordinate(lat, lng float64) (float64, float64) {
	return lat + 0.001, lng - 0.001
}

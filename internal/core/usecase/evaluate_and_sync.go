package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
	"market-sync-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
)

// SyncSettings - пороги и лимиты пайплайна. Значения приходят из конфига,
// ядро про переменные окружения не знает.
type SyncSettings struct {
	MinPropertyRecords int
	MinCivicRecords    int
	WindowMonths       int
	RecordCap          int
}

// EvaluateAndSyncDeps - зависимости координатора. Их много, поэтому
// структура вместо позиционных аргументов.
type EvaluateAndSyncDeps struct {
	CivicFetchers    []port.CivicFetcherPort
	TransitFetcher   port.TransitFetcherPort
	AssessorFetchers []port.AssessorFetcherPort

	Normalizer usecases_port.NormalizeAssessmentsUseCase
	Signals    usecases_port.ComputeSignalsUseCase
	Aggregates usecases_port.RefreshAggregatesUseCase

	Properties port.PropertyStoragePort
	Civic      port.CivicStoragePort
	Transit    port.TransitStoragePort
	SignalRows port.SignalStoragePort
	Aggs       port.AggregateStoragePort
	Meta       port.SourceMetaStoragePort

	// Reports может быть nil - тогда отчет уходит только в лог.
	Reports port.SyncReportQueuePort
}

// EvaluateAndSyncUseCase - координатор пайплайна. Смотрит на состояние
// хранилища, строит план устаревших доменов, прогоняет
// fetch -> normalize -> store по каждому с изоляцией сбоев, затем
// пересчитывает сигналы и агрегаты. Частичные сбои попадают в отчет,
// а не в ошибку: ошибка возвращается только при недоступности хранилища.
type EvaluateAndSyncUseCase struct {
	deps     EvaluateAndSyncDeps
	settings SyncSettings
}

// NewEvaluateAndSyncUseCase создает новый экземпляр координатора.
func NewEvaluateAndSyncUseCase(deps EvaluateAndSyncDeps, settings SyncSettings) *EvaluateAndSyncUseCase {
	return &EvaluateAndSyncUseCase{
		deps:     deps,
		settings: settings,
	}
}

// domainTask - одна независимая единица плана синхронизации.
type domainTask struct {
	name  string
	stale bool
	run   func(ctx context.Context) (int, error)
}

// Execute выполняет полный прогон. Запуск повторно по неизменившимся
// источникам идемпотентен: все записи идут через upsert/insert-ignore/replace.
func (uc *EvaluateAndSyncUseCase) Execute(ctx context.Context, runID uuid.UUID) (*domain.SyncReport, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "EvaluateAndSync"})

	counts, err := uc.loadCounts(ctx)
	if err != nil {
		// Единственный фатальный класс ошибок: хранилище недоступно
		return nil, fmt.Errorf("failed to read store state: %w", err)
	}

	report := &domain.SyncReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}
	runLogger := ucLogger.WithFields(port.Fields{"run_id": report.RunID.String()})

	now := time.Now().UTC()
	window := domain.TimeRange{
		From: now.AddDate(0, -uc.settings.WindowMonths, 0),
		To:   now,
	}

	tasks := uc.buildPlan(counts, window)
	staleCount := 0
	for _, t := range tasks {
		if t.stale {
			staleCount++
		}
	}
	runLogger.Info("Work plan built", port.Fields{
		"domains": len(tasks),
		"stale":   staleCount,
	})

	// Домены независимы: у каждого свое пространство ключей в хранилище,
	// поэтому выборка и запись идут параллельно без межадаптерных блокировок.
	results := make([]domain.DomainResult, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		if !task.stale {
			results[i] = domain.DomainResult{Domain: task.name, Outcome: domain.DomainOutcomeSkipped}
			runLogger.Debug("Domain is fresh, skipping", port.Fields{"domain": task.name})
			continue
		}

		wg.Add(1)
		go func(i int, task domainTask) {
			defer wg.Done()
			taskLogger := runLogger.WithFields(port.Fields{"domain": task.name})
			taskLogger.Info("Domain refresh started", nil)

			saved, err := runIsolated(ctx, task)
			if err != nil {
				taskLogger.Error("Domain refresh failed, continuing with remaining domains", err, nil)
				results[i] = domain.DomainResult{
					Domain:       task.name,
					Outcome:      domain.DomainOutcomeFailed,
					RecordsSaved: saved,
					Error:        err.Error(),
				}
				return
			}

			taskLogger.Info("Domain refresh finished", port.Fields{"records_saved": saved})
			results[i] = domain.DomainResult{
				Domain:       task.name,
				Outcome:      domain.DomainOutcomeSynced,
				RecordsSaved: saved,
			}
		}(i, task)
	}
	wg.Wait()
	report.Domains = results

	anySynced := false
	for _, r := range results {
		if r.Outcome == domain.DomainOutcomeSynced {
			anySynced = true
			break
		}
	}

	// Сигналы пересчитываются, когда таблица пуста или появились новые данные
	if counts.SignalSummaries == 0 || anySynced {
		n, err := uc.deps.Signals.Execute(ctx)
		if err != nil {
			runLogger.Error("Signal computation failed", err, nil)
			report.SignalsFailed = true
		}
		report.SignalsComputed = n
	}

	// Агрегаты пересчитываются безусловно: они должны отражать все данные,
	// которые есть в хранилище, а не только свежесинхронизированные
	aggTotal, err := uc.deps.Aggregates.Execute(ctx)
	if err != nil {
		runLogger.Error("Aggregate refresh reported errors", err, nil)
		report.AggregatesFailed = true
	}
	report.AggregatesTotal = aggTotal

	if finalCounts, err := uc.loadCounts(ctx); err != nil {
		runLogger.Error("Failed to reload final counts for report", err, nil)
		report.FinalCounts = *counts
	} else {
		report.FinalCounts = *finalCounts
	}

	report.FinishedAt = time.Now().UTC()

	if uc.deps.Reports != nil {
		if err := uc.deps.Reports.PublishReport(ctx, *report); err != nil {
			runLogger.Error("Failed to publish sync report", err, nil)
		}
	}

	runLogger.Info("Sync run finished", port.Fields{
		"duration_ms":      report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		"aggregates_total": report.AggregatesTotal,
		"signals_computed": report.SignalsComputed,
	})

	return report, nil
}

// runIsolated выполняет задачу домена, превращая панику адаптера в ошибку.
// Паника одного домена не должна ронять весь прогон.
func runIsolated(ctx context.Context, task domainTask) (saved int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("domain task panicked: %v", r)
		}
	}()
	return task.run(ctx)
}

func (uc *EvaluateAndSyncUseCase) loadCounts(ctx context.Context) (*domain.StoreCounts, error) {
	byJurisdiction, err := uc.deps.Properties.CountByJurisdiction(ctx)
	if err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}
	bySource, err := uc.deps.Civic.CountBySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("count civic records: %w", err)
	}
	transitCount, err := uc.deps.Transit.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count transit stops: %w", err)
	}
	signalCount, err := uc.deps.SignalRows.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count signal summaries: %w", err)
	}
	aggCount, err := uc.deps.Aggs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count aggregates: %w", err)
	}

	return &domain.StoreCounts{
		PropertiesByJurisdiction: byJurisdiction,
		CivicRecordsBySource:     bySource,
		TransitStops:             transitCount,
		SignalSummaries:          signalCount,
		Aggregates:               aggCount,
	}, nil
}

// buildPlan собирает упорядоченный список независимых задач обновления.
func (uc *EvaluateAndSyncUseCase) buildPlan(counts *domain.StoreCounts, window domain.TimeRange) []domainTask {
	var tasks []domainTask

	for _, fetcher := range uc.deps.CivicFetchers {
		f := fetcher
		tasks = append(tasks, domainTask{
			name:  f.Source(),
			stale: counts.CivicRecordsBySource[f.Source()] < uc.settings.MinCivicRecords,
			run: func(ctx context.Context) (int, error) {
				return uc.refreshCivicDomain(ctx, f, window)
			},
		})
	}

	if uc.deps.TransitFetcher != nil {
		f := uc.deps.TransitFetcher
		tasks = append(tasks, domainTask{
			name:  f.Source(),
			stale: counts.TransitStops == 0,
			run: func(ctx context.Context) (int, error) {
				return uc.refreshTransitDomain(ctx, f)
			},
		})
	}

	for _, fetcher := range uc.deps.AssessorFetchers {
		f := fetcher
		// Юрисдикция устарела, если записей меньше порога либо пуста
		// любая из зависимых производных таблиц
		stale := counts.PropertiesByJurisdiction[f.Jurisdiction()] < uc.settings.MinPropertyRecords ||
			counts.SignalSummaries == 0 ||
			counts.Aggregates == 0
		tasks = append(tasks, domainTask{
			name:  "assessments_" + f.Jurisdiction(),
			stale: stale,
			run: func(ctx context.Context) (int, error) {
				return uc.refreshAssessorDomain(ctx, f, window)
			},
		})
	}

	return tasks
}

func (uc *EvaluateAndSyncUseCase) refreshCivicDomain(ctx context.Context, fetcher port.CivicFetcherPort, window domain.TimeRange) (int, error) {
	records, fetchErr := fetcher.FetchCivicRecords(ctx, window, uc.settings.RecordCap)

	// Частичный результат сохраняем даже при ошибке выборки: вставка
	// insert-or-ignore, следующий прогон доберет недостающее.
	saved := 0
	if len(records) > 0 {
		n, err := uc.deps.Civic.BatchInsertIgnore(ctx, records)
		if err != nil {
			return 0, fmt.Errorf("store civic records: %w", err)
		}
		saved = n
	}

	if fetchErr != nil {
		return saved, fmt.Errorf("fetch %s: %w", fetcher.Source(), fetchErr)
	}

	uc.markSourceRefreshed(ctx, fetcher.Source(), len(records))
	return saved, nil
}

func (uc *EvaluateAndSyncUseCase) refreshTransitDomain(ctx context.Context, fetcher port.TransitFetcherPort) (int, error) {
	stops, fetchErr := fetcher.FetchTransitStops(ctx, uc.settings.RecordCap)
	if fetchErr != nil {
		// Таблица заменяется целиком, частичным набором ее портить нельзя
		return 0, fmt.Errorf("fetch %s: %w", fetcher.Source(), fetchErr)
	}

	saved, err := uc.deps.Transit.ReplaceAll(ctx, stops)
	if err != nil {
		return 0, fmt.Errorf("replace transit stops: %w", err)
	}

	uc.markSourceRefreshed(ctx, fetcher.Source(), saved)
	return saved, nil
}

func (uc *EvaluateAndSyncUseCase) refreshAssessorDomain(ctx context.Context, fetcher port.AssessorFetcherPort, window domain.TimeRange) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx)

	raw, fetchErr := fetcher.FetchAssessments(ctx, window, uc.settings.RecordCap)
	if fetchErr != nil {
		return 0, fmt.Errorf("fetch assessments %s: %w", fetcher.Jurisdiction(), fetchErr)
	}

	properties, normErrs := uc.deps.Normalizer.Execute(ctx, raw, fetcher.Jurisdiction())
	if len(normErrs) > 0 {
		logger.Warn("Normalization skipped records", port.Fields{
			"jurisdiction": fetcher.Jurisdiction(),
			"skipped":      len(normErrs),
		})
	}

	saved, err := uc.deps.Properties.BatchUpsert(ctx, properties)
	if err != nil {
		return 0, fmt.Errorf("store properties %s: %w", fetcher.Jurisdiction(), err)
	}

	uc.markSourceRefreshed(ctx, "assessments_"+fetcher.Jurisdiction(), saved)
	return saved, nil
}

// markSourceRefreshed обновляет служебную запись источника.
// Ошибка здесь не критична и не должна помечать домен как сбойный.
func (uc *EvaluateAndSyncUseCase) markSourceRefreshed(ctx context.Context, source string, recordCount int) {
	meta := domain.DataSourceMeta{
		Source:        source,
		LastRefreshAt: time.Now().UTC(),
		RecordCount:   recordCount,
	}
	if err := uc.deps.Meta.Upsert(ctx, meta); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to update data source meta", err, port.Fields{"source": source})
	}
}

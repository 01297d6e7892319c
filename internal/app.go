package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"market-sync-service/internal/adapters/assessorfetcher"
	"market-sync-service/internal/adapters/civicfetcher"
	logger_adapter "market-sync-service/internal/adapters/logger"
	postgres_adapter "market-sync-service/internal/adapters/postgres"
	rabbitmq_adapter "market-sync-service/internal/adapters/rabbitmq"
	"market-sync-service/internal/adapters/rest"
	"market-sync-service/internal/configs"
	"market-sync-service/internal/constants"
	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/port"
	"market-sync-service/internal/core/usecase"
	fluentlogger "market-sync-service/pkg/fluent_logger"
	"market-sync-service/pkg/postgres"
	"market-sync-service/pkg/rabbitmq/rabbitmq_common"
	"market-sync-service/pkg/rabbitmq/rabbitmq_producer"
)

type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server

	syncUC *usecase.EvaluateAndSyncUseCase

	pool          *pgxpool.Pool
	eventProducer *rabbitmq_producer.Publisher
	logger        port.LoggerPort
	fluentClient  *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. Логгеры ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false,
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 2. PostgreSQL ---
	pgCtx, pgCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer pgCancel()

	pool, err := postgres.NewClient(pgCtx, postgres.Config{
		DatabaseURL: appConfig.Database.URL,
		MaxConns:    int32(appConfig.Database.MaxConns),
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	appLogger.Info("PostgreSQL pool initialized.", nil)

	propertyStorage := postgres_adapter.NewPropertyStorageAdapter(pool)
	civicStorage := postgres_adapter.NewCivicStorageAdapter(pool)
	transitStorage := postgres_adapter.NewTransitStorageAdapter(pool)
	signalStorage := postgres_adapter.NewSignalStorageAdapter(pool)
	aggregateStorage := postgres_adapter.NewAggregateStorageAdapter(pool)
	sourceMetaStorage := postgres_adapter.NewSourceMetaStorageAdapter(pool)

	// --- 3. RabbitMQ (опционально) ---
	var eventProducer *rabbitmq_producer.Publisher
	var reportsQueue port.SyncReportQueuePort
	if appConfig.RabbitMQ.Enabled {
		producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
		pkgLoggerBridge := rabbitmq_adapter.NewPkgLoggerBridge(producerLogger)

		connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
		connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger)
		connManager, err := rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
		if err != nil {
			appLogger.Error("Failed to create connection manager", err, nil)
			pool.Close()
			return nil, fmt.Errorf("failed to create connection manager: %w", err)
		}
		appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

		producerCfg := rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			ExchangeName:             constants.SyncExchange,
			ExchangeType:             "direct",
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
			Logger:                   pkgLoggerBridge,
		}
		eventProducer, err = rabbitmq_producer.NewPublisher(producerCfg, connManager)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create event producer: %w", err)
		}
		appLogger.Info("RabbitMQ Event Producer initialized.", nil)

		reportsQueue, err = rabbitmq_adapter.NewSyncReporterAdapter(eventProducer, constants.RoutingKeySyncReports)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create sync reporter adapter: %w", err)
		}
	}

	// --- 4. Фетчеры источников ---
	permitsFetcher, err := civicfetcher.NewPermitsFetcherAdapter(appConfig.Sources.NYCPermitsURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	violationsFetcher, err := civicfetcher.NewViolationsFetcherAdapter(appConfig.Sources.NYCViolationsURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	complaintsFetcher, err := civicfetcher.NewComplaints311FetcherAdapter(appConfig.Sources.NYC311URL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	transitFetcher, err := civicfetcher.NewTransitFetcherAdapter(appConfig.Sources.NYCTransitURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	njFetcher, err := assessorfetcher.NewNJAssessorFetcherAdapter(appConfig.Sources.NJAssessorURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	ctFetcher, err := assessorfetcher.NewCTAssessorFetcherAdapter(appConfig.Sources.CTAssessorURL)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// --- 5. Use cases ---
	estimationPolicy := usecase.NewDefaultEstimationPolicy(time.Now().UnixNano(), appConfig.Sync.JitterDegrees)
	normalizeUC := usecase.NewNormalizeAssessmentsUseCase(estimationPolicy)
	signalsUC := usecase.NewComputeSignalsUseCase(
		propertyStorage, civicStorage, transitStorage, signalStorage,
		appConfig.Sync.RecentComplaintMonths,
		appConfig.Sync.FloodHighLatBelow,
		appConfig.Sync.FloodModerateLatBelow,
	)
	aggregatesUC := usecase.NewRefreshAggregatesUseCase(propertyStorage, aggregateStorage)

	syncUC := usecase.NewEvaluateAndSyncUseCase(usecase.EvaluateAndSyncDeps{
		CivicFetchers:    []port.CivicFetcherPort{permitsFetcher, violationsFetcher, complaintsFetcher},
		TransitFetcher:   transitFetcher,
		AssessorFetchers: []port.AssessorFetcherPort{njFetcher, ctFetcher},

		Normalizer: normalizeUC,
		Signals:    signalsUC,
		Aggregates: aggregatesUC,

		Properties: propertyStorage,
		Civic:      civicStorage,
		Transit:    transitStorage,
		SignalRows: signalStorage,
		Aggs:       aggregateStorage,
		Meta:       sourceMetaStorage,

		Reports: reportsQueue,
	}, usecase.SyncSettings{
		MinPropertyRecords: appConfig.Sync.MinPropertyRecords,
		MinCivicRecords:    appConfig.Sync.MinCivicRecords,
		WindowMonths:       appConfig.Sync.WindowMonths,
		RecordCap:          appConfig.Sync.RecordCap,
	})

	appLogger.Info("All use cases initialized", nil)

	apiHandlers := rest.NewSyncHandlers(syncUC, baseLogger)
	apiServer := rest.NewServer(appConfig.HTTP.Port, appConfig.HTTP.AdminToken, apiHandlers, baseLogger)

	application := &App{
		config:        appConfig,
		apiServer:     apiServer,
		syncUC:        syncUC,
		pool:          pool,
		eventProducer: eventProducer,
		logger:        appLogger,
		fluentClient:  fluentClient,
	}

	return application, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}

		if a.pool != nil {
			a.pool.Close()
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// Пишем в stdout, так как fluent может быть уже недоступен
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.HTTP.Port})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	if a.config.Sync.RunOnStart {
		go func() {
			runID := uuid.New()
			runLogger := a.logger.WithFields(port.Fields{"run_id": runID.String(), "trigger": "startup"})
			runCtx := contextkeys.ContextWithLogger(appCtx, runLogger)

			runLogger.Info("Starting initial sync run", nil)
			if _, err := a.syncUC.Execute(runCtx, runID); err != nil {
				runLogger.Error("Initial sync run failed", err, nil)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down...", nil)
	case err := <-serverErrors:
		a.logger.Error("HTTP server failed to start, shutting down", err, nil)
	}

	cancelApp()

	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}

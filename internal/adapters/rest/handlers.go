package rest

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
	"market-sync-service/internal/core/port/usecases_port"
)

// SyncHandlers запускает прогоны синхронизации и отдает их состояние.
// Прогон single-flight: пока один выполняется, повторный запрос
// получает 409 с идентификатором текущего прогона.
type SyncHandlers struct {
	syncUC     usecases_port.EvaluateAndSyncUseCase
	baseLogger port.LoggerPort

	mu           sync.Mutex
	running      bool
	currentRunID uuid.UUID
	lastReport   *domain.SyncReport
	lastError    string
}

// NewSyncHandlers - конструктор для наших обработчиков.
func NewSyncHandlers(syncUC usecases_port.EvaluateAndSyncUseCase, baseLogger port.LoggerPort) *SyncHandlers {
	return &SyncHandlers{
		syncUC:     syncUC,
		baseLogger: baseLogger,
	}
}

// HandleStartSync - обработчик для POST /api/v1/sync.
// Сам прогон идет в фоне; запрос сразу получает 202 с run_id.
func (h *SyncHandlers) HandleStartSync(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleStartSync"})

	h.mu.Lock()
	if h.running {
		runID := h.currentRunID
		h.mu.Unlock()
		logger.Warn("Sync run already in progress", port.Fields{"run_id": runID.String()})
		RespondWithJSON(w, http.StatusConflict, SyncAcceptedDTO{
			RunID:  runID.String(),
			Status: "already_running",
		})
		return
	}

	runID := uuid.New()
	h.running = true
	h.currentRunID = runID
	h.mu.Unlock()

	logger.Info("Starting sync run", port.Fields{"run_id": runID.String()})

	// Фоновый контекст, но с логгером и trace_id запроса: прогон
	// переживает HTTP-запрос, а связь в логах сохраняется
	runCtx := contextkeys.ContextWithLogger(context.Background(), contextkeys.LoggerFromContext(r.Context()))
	runCtx = contextkeys.ContextWithTraceID(runCtx, contextkeys.TraceIDFromContext(r.Context()))

	go h.runSync(runCtx, runID)

	RespondWithJSON(w, http.StatusAccepted, SyncAcceptedDTO{
		RunID:  runID.String(),
		Status: "accepted",
	})
}

func (h *SyncHandlers) runSync(ctx context.Context, runID uuid.UUID) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"run_id": runID.String()})

	report, err := h.syncUC.Execute(ctx, runID)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.running = false
	if err != nil {
		h.lastError = err.Error()
		logger.Error("Sync run failed", err, nil)
		return
	}

	h.lastReport = report
	h.lastError = ""
	logger.Info("Sync run finished", port.Fields{"domains": len(report.Domains)})
}

// HandleSyncStatus - обработчик для GET /api/v1/sync/status
func (h *SyncHandlers) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dto := SyncStatusDTO{
		Running:    h.running,
		LastReport: h.lastReport,
		LastError:  h.lastError,
	}
	if h.running {
		dto.CurrentRunID = h.currentRunID.String()
	}

	RespondWithJSON(w, http.StatusOK, dto)
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, port.Fields)         {}
func (nopLogger) Warn(string, port.Fields)         {}
func (nopLogger) Error(string, error, port.Fields) {}
func (nopLogger) Debug(string, port.Fields)        {}
func (l nopLogger) WithFields(port.Fields) port.LoggerPort {
	return l
}

// blockingSyncUseCase висит на release, чтобы тест мог наблюдать
// состояние "прогон выполняется".
type blockingSyncUseCase struct {
	release chan struct{}
	report  *domain.SyncReport
	err     error
}

func (uc *blockingSyncUseCase) Execute(_ context.Context, runID uuid.UUID) (*domain.SyncReport, error) {
	<-uc.release
	if uc.err != nil {
		return nil, uc.err
	}
	report := *uc.report
	report.RunID = runID
	return &report, nil
}

func newTestRouter(uc *blockingSyncUseCase) http.Handler {
	handlers := NewSyncHandlers(uc, nopLogger{})
	// Тот же роутинг, что и в NewServer, но без реального listen
	srv := NewServer("0", "secret-token", handlers, nopLogger{})
	return srv.httpServer.Handler
}

func doRequest(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSyncEndpoint_Auth(t *testing.T) {
	router := newTestRouter(&blockingSyncUseCase{release: make(chan struct{})})

	t.Run("missing header", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/sync", "wrong")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("status endpoint is protected too", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSyncEndpoint_SingleFlight(t *testing.T) {
	uc := &blockingSyncUseCase{
		release: make(chan struct{}),
		report: &domain.SyncReport{
			Domains: []domain.DomainResult{{Domain: "nyc_dob_permits", Outcome: domain.DomainOutcomeSynced}},
		},
	}
	router := newTestRouter(uc)

	// Первый запрос принимается и уходит в фон
	rec := doRequest(t, router, http.MethodPost, "/api/v1/sync", "secret-token")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted SyncAcceptedDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "accepted", accepted.Status)
	runID, err := uuid.Parse(accepted.RunID)
	require.NoError(t, err)

	// Повторный запрос во время прогона получает 409 с тем же run_id
	rec = doRequest(t, router, http.MethodPost, "/api/v1/sync", "secret-token")
	require.Equal(t, http.StatusConflict, rec.Code)

	var conflict SyncAcceptedDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, "already_running", conflict.Status)
	assert.Equal(t, runID.String(), conflict.RunID)

	// Статус показывает выполняющийся прогон
	rec = doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "secret-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var status SyncStatusDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, runID.String(), status.CurrentRunID)
	assert.Nil(t, status.LastReport)

	// Прогон завершается, отчет появляется в статусе
	close(uc.release)
	require.Eventually(t, func() bool {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "secret-token")
		var st SyncStatusDTO
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			return false
		}
		return !st.Running && st.LastReport != nil
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "secret-token")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, runID, status.LastReport.RunID)
	assert.Empty(t, status.LastError)

	// Новый прогон снова разрешен
	rec = doRequest(t, router, http.MethodPost, "/api/v1/sync", "secret-token")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSyncEndpoint_FailedRunIsReported(t *testing.T) {
	uc := &blockingSyncUseCase{
		release: make(chan struct{}),
		err:     errors.New("failed to read store state: connection refused"),
	}
	router := newTestRouter(uc)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/sync", "secret-token")
	require.Equal(t, http.StatusAccepted, rec.Code)
	close(uc.release)

	require.Eventually(t, func() bool {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "secret-token")
		var st SyncStatusDTO
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			return false
		}
		return !st.Running && st.LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/sync/status", "secret-token")
	var status SyncStatusDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.LastError, "connection refused")
	assert.Nil(t, status.LastReport)
}

package usecases_port

import (
	"context"
	"market-sync-service/internal/core/domain"

	"github.com/google/uuid"
)

type EvaluateAndSyncUseCase interface {
	// Execute выполняет один прогон под заданным идентификатором.
	// runID выдает вызывающая сторона, чтобы отдать его клиенту
	// до завершения прогона.
	Execute(ctx context.Context, runID uuid.UUID) (*domain.SyncReport, error)
}

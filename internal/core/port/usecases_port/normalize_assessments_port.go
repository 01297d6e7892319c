package usecases_port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

type NormalizeAssessmentsUseCase interface {
	// Execute нормализует сырые строки фида в канонические записи.
	// Ошибки отдельных строк не прерывают пачку: они возвращаются срезом.
	Execute(ctx context.Context, raw []domain.RawAssessment, jurisdiction string) ([]domain.Property, []error)
}

package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// AssessorFetcherPort - фид оценщика одного штата. Возвращает сырые строки,
// нормализация в каноническую Property происходит в use case, а не здесь.
type AssessorFetcherPort interface {
	// Jurisdiction возвращает код юрисдикции фида ("nj", "ct", ...).
	Jurisdiction() string

	// FetchAssessments извлекает строки фида за окно window, но не больше limit.
	// Частичный результат с ненулевой ошибкой допустим.
	FetchAssessments(ctx context.Context, window domain.TimeRange, limit int) ([]domain.RawAssessment, error)
}

package usecases_port

import "context"

type RefreshAggregatesUseCase interface {
	// Execute пересчитывает перцентильную статистику по всем уровням
	// географии и возвращает общее количество строк.
	Execute(ctx context.Context) (int, error)
}

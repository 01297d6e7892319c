package usecases_port

import "context"

type ComputeSignalsUseCase interface {
	// Execute пересчитывает сигналы для всех канонических записей
	// и возвращает количество сохраненных строк.
	Execute(ctx context.Context) (int, error)
}

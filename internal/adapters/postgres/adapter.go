package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Адаптеры хранилища поверх одного пула соединений. Каждый порт реализован
// отдельной структурой, чтобы одноименные методы разных портов
// (ListAll, Count, BatchUpsert) не конфликтовали.

// Размер чанка для массовых записей: ограничивает размер одной транзакции.
const writeChunkSize = 500

// chunked режет пачку на куски по writeChunkSize строк.
func chunked[T any](items []T) [][]T {
	var chunks [][]T
	for start := 0; start < len(items); start += writeChunkSize {
		end := start + writeChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// PropertyStorageAdapter реализует PropertyStoragePort.
type PropertyStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPropertyStorageAdapter - конструктор
func NewPropertyStorageAdapter(pool *pgxpool.Pool) *PropertyStorageAdapter {
	return &PropertyStorageAdapter{pool: pool}
}

// CivicStorageAdapter реализует CivicStoragePort.
type CivicStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewCivicStorageAdapter - конструктор
func NewCivicStorageAdapter(pool *pgxpool.Pool) *CivicStorageAdapter {
	return &CivicStorageAdapter{pool: pool}
}

// TransitStorageAdapter реализует TransitStoragePort.
type TransitStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewTransitStorageAdapter - конструктор
func NewTransitStorageAdapter(pool *pgxpool.Pool) *TransitStorageAdapter {
	return &TransitStorageAdapter{pool: pool}
}

// SignalStorageAdapter реализует SignalStoragePort.
type SignalStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewSignalStorageAdapter - конструктор
func NewSignalStorageAdapter(pool *pgxpool.Pool) *SignalStorageAdapter {
	return &SignalStorageAdapter{pool: pool}
}

// AggregateStorageAdapter реализует AggregateStoragePort.
type AggregateStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewAggregateStorageAdapter - конструктор
func NewAggregateStorageAdapter(pool *pgxpool.Pool) *AggregateStorageAdapter {
	return &AggregateStorageAdapter{pool: pool}
}

// SourceMetaStorageAdapter реализует SourceMetaStoragePort.
type SourceMetaStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewSourceMetaStorageAdapter - конструктор
func NewSourceMetaStorageAdapter(pool *pgxpool.Pool) *SourceMetaStorageAdapter {
	return &SourceMetaStorageAdapter{pool: pool}
}

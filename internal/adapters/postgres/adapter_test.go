package postgres

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-sync-service/internal/core/domain"
)

func TestDedupeProperties_KeepsFirstOccurrence(t *testing.T) {
	batch := []domain.Property{
		{Jurisdiction: "nj", SourceKey: "0714-101-5", Address: "16 Clifton Ave"},
		{Jurisdiction: "ct", SourceKey: "0714-101-5", Address: "22 Elm St"},
		{Jurisdiction: "nj", SourceKey: "0714-101-5", Address: "16 Clifton Ave (stale page)"},
		{Jurisdiction: "nj", SourceKey: "0902-44-12", Address: "8 Grand St"},
	}

	deduped := dedupeProperties(batch)

	require.Len(t, deduped, 3)
	// Первое вхождение ключа побеждает, порядок пачки сохраняется.
	assert.Equal(t, "16 Clifton Ave", deduped[0].Address)
	assert.Equal(t, "22 Elm St", deduped[1].Address)
	assert.Equal(t, "8 Grand St", deduped[2].Address)
}

func TestDedupeProperties_DistinctKeysUntouched(t *testing.T) {
	batch := []domain.Property{
		{Jurisdiction: "nj", SourceKey: "a"},
		{Jurisdiction: "nj", SourceKey: "b"},
		{Jurisdiction: "ct", SourceKey: "a"},
	}

	assert.Equal(t, batch, dedupeProperties(batch))
	assert.Empty(t, dedupeProperties(nil))
}

func TestChunked_SplitsAtChunkSize(t *testing.T) {
	items := make([]string, writeChunkSize+3)
	for i := range items {
		items[i] = fmt.Sprintf("row-%d", i)
	}

	chunks := chunked(items)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], writeChunkSize)
	assert.Len(t, chunks[1], 3)
	assert.Equal(t, "row-0", chunks[0][0])
	assert.Equal(t, fmt.Sprintf("row-%d", writeChunkSize), chunks[1][0])

	assert.Nil(t, chunked([]string{}))
}

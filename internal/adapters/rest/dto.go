package rest

import "market-sync-service/internal/core/domain"

// SyncAcceptedDTO - ответ на принятый запрос синхронизации.
type SyncAcceptedDTO struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// SyncStatusDTO - текущее состояние координатора.
type SyncStatusDTO struct {
	Running      bool               `json:"running"`
	CurrentRunID string             `json:"current_run_id,omitempty"`
	LastReport   *domain.SyncReport `json:"last_report,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
}

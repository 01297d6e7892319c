package port

import (
	"context"
	"market-sync-service/internal/core/domain"
)

// SyncReportQueuePort публикует итоговый отчет прогона во внешнюю очередь,
// чтобы операторские инструменты могли на него подписаться.
type SyncReportQueuePort interface {
	PublishReport(ctx context.Context, report domain.SyncReport) error
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"market-sync-service/internal/contextkeys"
	"market-sync-service/internal/contracts"
	"market-sync-service/internal/core/domain"
	"market-sync-service/internal/core/port"
	"market-sync-service/pkg/rabbitmq/rabbitmq_producer"
)

// SyncReporterAdapter публикует итоговые отчеты прогонов в обменник отчетов.
type SyncReporterAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

func NewSyncReporterAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*SyncReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &SyncReporterAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

func (a *SyncReporterAdapter) PublishReport(ctx context.Context, report domain.SyncReport) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "SyncReporterAdapter",
		"routing_key": a.routingKey,
		"run_id":      report.RunID.String(),
	})

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal report for run %s: %w", report.RunID, err)
	}

	// Контракт проверяется до публикации: невалидный отчет не должен
	// попадать к подписчикам
	if err := contracts.ValidateEvent("SyncReportEvent", "1.0.0", body); err != nil {
		return fmt.Errorf("rabbitmq adapter: report for run %s violates contract: %w", report.RunID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Для сохранения сообщений при перезапуске брокера
		Timestamp:    time.Now(),
		Headers:      make(amqp.Table),
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	adapterLogger.Info("Publishing sync run report", nil)
	err = a.producer.Publish(publishCtx, a.routingKey, msg)
	if err != nil {
		adapterLogger.Error("Failed to publish sync run report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish report for run %s: %w", report.RunID, err)
	}

	adapterLogger.Info("Successfully published sync run report", nil)
	return nil
}

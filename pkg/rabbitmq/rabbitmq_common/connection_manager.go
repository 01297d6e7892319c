package rabbitmq_common

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnectCheckInterval = 10 * time.Second

// ConnectionManager держит единственное соединение с брокером отчетов
// синхронизации и переоткрывает его после обрыва.
type ConnectionManager struct {
	url        string
	connection *amqp.Connection
	mutex      sync.RWMutex
	Logger     Logger
}

var (
	managerInstance *ConnectionManager
	once            sync.Once
)

// GetManager создает или возвращает глобальный экземпляр менеджера (Синглтон).
// Брокер не обязателен для старта пайплайна, но без начального соединения
// публикация отчетов не заработает, поэтому ошибка возвращается сразу.
func GetManager(url string, logger Logger) (*ConnectionManager, error) {
	var initErr error

	once.Do(func() {
		if logger == nil {
			logger = NewNoopLogger()
		}
		managerInstance = &ConnectionManager{
			url:    url,
			Logger: logger,
		}
		if _, err := managerInstance.getConnection(); err != nil {
			logger.Error(err, "Initial report broker connection failed")
			initErr = fmt.Errorf("initial connection failed: %w", err)
			return
		}
		go managerInstance.handleReconnect()
	})

	if initErr != nil {
		return nil, initErr
	}

	return managerInstance, nil
}

// getConnection возвращает живое соединение или устанавливает новое
func (m *ConnectionManager) getConnection() (*amqp.Connection, error) {
	m.mutex.RLock()
	if m.connection != nil && !m.connection.IsClosed() {
		m.mutex.RUnlock()
		return m.connection, nil
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Повторная проверка: другой поток мог уже переподключиться
	if m.connection != nil && !m.connection.IsClosed() {
		return m.connection, nil
	}

	m.Logger.Debug("Connecting to report broker", "broker_host", m.brokerHost())
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("ConnectionManager: failed to dial RabbitMQ: %w", err)
	}
	m.connection = conn
	m.Logger.Debug("Report broker connection established", "broker_host", m.brokerHost())
	return m.connection, nil
}

// GetChannel открывает новый канал поверх общего соединения. Каждый
// публикатор отчетов берет свой канал, соединение у всех одно.
func (m *ConnectionManager) GetChannel() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := m.getConnection()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return conn, nil, fmt.Errorf("ConnectionManager: failed to open a channel: %w", err)
	}
	return conn, ch, nil
}

func (m *ConnectionManager) handleReconnect() {
	for {
		time.Sleep(reconnectCheckInterval)

		m.mutex.RLock()
		if m.connection == nil || !m.connection.IsClosed() {
			m.mutex.RUnlock()
			continue
		}
		m.mutex.RUnlock()

		m.Logger.Warn("Report broker connection lost, reconnecting", "broker_host", m.brokerHost())
		if _, err := m.getConnection(); err != nil {
			m.Logger.Error(err, "Report broker reconnect failed", "broker_host", m.brokerHost())
		}
	}
}

// Close закрывает общее соединение с брокером
func (m *ConnectionManager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.connection != nil && !m.connection.IsClosed() {
		m.Logger.Debug("Closing report broker connection")
		if err := m.connection.Close(); err != nil {
			m.Logger.Error(err, "Failed to close report broker connection properly")
			return err
		}
		m.Logger.Debug("Report broker connection closed")
		return nil
	}

	m.Logger.Debug("Report broker connection was already closed or not established")
	return nil
}

// brokerHost - хост брокера без учетных данных, только для логов.
func (m *ConnectionManager) brokerHost() string {
	u, err := url.Parse(m.url)
	if err != nil {
		return "invalid-url"
	}
	return u.Host
}

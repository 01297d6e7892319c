package constants

// Имя exchange для событий сервиса
const SyncExchange = "market_sync_exchange"

// Ключи маршрутизации
const (
	RoutingKeySyncReports = "sync.run.report"
)

package schemas

import "embed"

// SchemasFS содержит JSON-схемы событий, которые сервис публикует в шину.
//
//go:embed events
var SchemasFS embed.FS

// Package migrations содержит SQL-миграции клиента (SQLite) и сервера (PostgreSQL).
package migrations

import "embed"

//go:embed client/*.sql
var Client embed.FS

//go:embed server/*.sql
var Server embed.FS

const (
	ClientDir = "client"
	ServerDir = "server"
)

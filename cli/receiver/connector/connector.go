package connector

import (
	"context"
	"database/sql"
)

// Connector подключение к PostgreSQL, общее для записи истории, секций и сводки
type Connector interface {
	GetConnection() *sql.DB
	Connect(map[string]string) error
	Ping(ctx context.Context) error
	DSN() string
	URL() string
	Close() error
}

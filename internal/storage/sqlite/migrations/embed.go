package migrations

import "embed"

// FS содержит встроенные миграции SQLite хранилища документов
//
//go:embed *.sql
var FS embed.FS

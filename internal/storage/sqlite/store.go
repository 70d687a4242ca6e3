// Package sqlite хранит документы анкеты в SQLite. Каждый документ хранится как JSON в
// таблице documents, фильтры считаются через json_extract.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/storage/sqlite/migrations"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store документное хранилище поверх SQLite
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open открывает базу и применяет встроенные миграции
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close закрывает базу
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Add сохраняет запись как JSON документ
func (s *Store) Add(ctx context.Context, collection string, record any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storage.ContextStatus(err)
	}
	if s == nil || s.sqlDB == nil {
		return "", status.Error(codes.Unavailable, "storage is not configured")
	}
	if err := storage.ValidateCollection(collection); err != nil {
		return "", err
	}

	createdAt := s.now().UTC()
	data, err := storage.EncodeRecord(record, createdAt)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return "", status.Errorf(codes.FailedPrecondition, "encode document: %v", err)
	}

	id := uuid.NewString()
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body, created_at) VALUES (?, ?, ?, ?)`,
		id, collection, string(body), toMillis(createdAt),
	)
	if err != nil {
		return "", sqliteStatus("insert document", err)
	}
	return id, nil
}

// FindOne возвращает самый ранний документ коллекции, подходящий под фильтры
func (s *Store) FindOne(ctx context.Context, collection string, filters ...storage.Filter) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, storage.ContextStatus(err)
	}
	if s == nil || s.sqlDB == nil {
		return storage.Document{}, status.Error(codes.Unavailable, "storage is not configured")
	}

	query := strings.Builder{}
	query.WriteString(`SELECT id, body, created_at FROM documents WHERE collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		if !fieldName.MatchString(f.Field) {
			return storage.Document{}, status.Errorf(codes.FailedPrecondition, "invalid filter field %q", f.Field)
		}
		query.WriteString(` AND json_extract(body, ?) = ?`)
		args = append(args, "$."+f.Field, f.Value)
	}
	query.WriteString(` ORDER BY created_at, id LIMIT 1`)

	var (
		id        string
		body      string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, query.String(), args...).Scan(&id, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, sqliteStatus("find document", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return storage.Document{}, status.Errorf(codes.Unknown, "decode document %s: %v", id, err)
	}
	return storage.Document{
		ID:         id,
		Collection: collection,
		CreatedAt:  fromMillis(createdAt),
		Data:       data,
	}, nil
}

// sqliteStatus переводит ошибку SQLite в status хранилища
func sqliteStatus(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.ContextStatus(err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return status.Errorf(codeFor(sqliteErr.Code()), "%s: %v", op, err)
	}

	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return status.Errorf(codes.Unavailable, "%s: %v", op, err)
	}
	return status.Errorf(codes.Unknown, "%s: %v", op, err)
}

// codeFor сопоставляет код SQLite (включая расширенные) с кодом хранилища
func codeFor(code int) codes.Code {
	switch code & 0xff {
	case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED, sqlite3lib.SQLITE_IOERR,
		sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_PROTOCOL:
		return codes.Unavailable
	case sqlite3lib.SQLITE_PERM, sqlite3lib.SQLITE_READONLY, sqlite3lib.SQLITE_AUTH:
		return codes.PermissionDenied
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_MISMATCH, sqlite3lib.SQLITE_SCHEMA:
		return codes.FailedPrecondition
	case sqlite3lib.SQLITE_FULL, sqlite3lib.SQLITE_NOMEM, sqlite3lib.SQLITE_TOOBIG:
		return codes.ResourceExhausted
	default:
		return codes.Unknown
	}
}

var _ storage.Store = (*Store)(nil)

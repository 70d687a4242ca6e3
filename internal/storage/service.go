package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FileStore хранит документы в JSON файлах: <root>/<collection>/<collection>_<id>.json
type FileStore struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

// OpenFileStore создает файловое хранилище в каталоге root
func OpenFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// Создаем директорию если её нет
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", root, err)
	}

	return &FileStore{root: filepath.Clean(root), now: time.Now}, nil
}

// Add сохраняет запись в JSON файл
func (s *FileStore) Add(ctx context.Context, collection string, record any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ContextStatus(err)
	}
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}

	createdAt := s.now().UTC()
	data, err := EncodeRecord(record, createdAt)
	if err != nil {
		return "", err
	}

	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		CreatedAt:  createdAt,
		Data:       data,
	}

	// Сериализуем документ в JSON с отступами
	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", status.Errorf(codes.FailedPrecondition, "encode document: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fileStatus("create collection directory", err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить половину документа
	path := s.documentPath(collection, doc.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fileStatus("write document", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fileStatus("commit document", err)
	}

	return doc.ID, nil
}

// Get загружает документ по ID
func (s *FileStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, ContextStatus(err)
	}
	if err := ValidateCollection(collection); err != nil {
		return Document{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}

	data, err := os.ReadFile(s.documentPath(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrNotFound
		}
		return Document{}, fileStatus("read document", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, status.Errorf(codes.Unknown, "decode document %s: %v", id, err)
	}
	return doc, nil
}

// List возвращает ID всех документов коллекции
func (s *FileStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, ContextStatus(err)
	}
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fileStatus("read collection", err)
	}

	prefix := collection + "_"
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, prefix) {
			continue
		}
		// Извлекаем ID из имени файла
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
	}
	return ids, nil
}

// FindOne возвращает самый ранний документ, подходящий под фильтры
func (s *FileStore) FindOne(ctx context.Context, collection string, filters ...Filter) (Document, error) {
	ids, err := s.List(ctx, collection)
	if err != nil {
		return Document{}, err
	}

	var matches []Document
	for _, id := range ids {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Document{}, err
		}
		if doc.Matches(filters...) {
			matches = append(matches, doc)
		}
	}
	if len(matches) == 0 {
		return Document{}, ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches[0], nil
}

// Close у файлового хранилища нечего закрывать
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) documentPath(collection, id string) string {
	return filepath.Join(s.root, collection, fmt.Sprintf("%s_%s.json", collection, id))
}

// ValidateCollection проверяет, что коллекция известна хранилищу
func ValidateCollection(collection string) error {
	switch collection {
	case CollectionProfiles, CollectionAssessments, CollectionContacts:
		return nil
	default:
		return status.Errorf(codes.FailedPrecondition, "unknown collection %q", collection)
	}
}

var _ Store = (*FileStore)(nil)

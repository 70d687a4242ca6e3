package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound документ не найден
var ErrNotFound = errors.New("document not found")

// EncodeRecord переводит запись в поля документа и проставляет createdAt
func EncodeRecord(record any, createdAt time.Time) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "encode record: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "record must encode to an object: %v", err)
	}
	if data == nil {
		return nil, status.Error(codes.FailedPrecondition, "record must encode to an object")
	}

	data[FieldCreatedAt] = createdAt.UTC().Format(time.RFC3339Nano)
	return data, nil
}

// Matches проверяет документ по фильтрам
func (d Document) Matches(filters ...Filter) bool {
	for _, f := range filters {
		value, ok := d.Data[f.Field]
		if !ok {
			return false
		}
		s, ok := value.(string)
		if !ok || s != f.Value {
			return false
		}
	}
	return true
}

// Decode раскладывает поля документа в запись
func (d Document) Decode(target any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// FindAssessment возвращает завершенную запись ответов для профиля
func FindAssessment(ctx context.Context, store Store, profileID string) (*AssessmentRecord, error) {
	doc, err := store.FindOne(ctx, CollectionAssessments,
		Where(FieldProfileID, profileID),
		Where(FieldStatus, StatusCompleted),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find assessment for %s: %w", profileID, err)
	}

	var record AssessmentRecord
	if err := doc.Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ContextStatus переводит ошибку контекста в status. Прерванная запись
// считается временной недоступностью хранилища.
func ContextStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Errorf(codes.Unavailable, "store request interrupted: %v", err)
}

// fileStatus переводит ошибку файловой системы в status
func fileStatus(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return status.Errorf(codes.PermissionDenied, "%s: %v", op, err)
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT), errors.Is(err, syscall.EMFILE):
		return status.Errorf(codes.ResourceExhausted, "%s: %v", op, err)
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.EIO):
		return status.Errorf(codes.Unavailable, "%s: %v", op, err)
	default:
		return status.Errorf(codes.Unknown, "%s: %v", op, err)
	}
}

// Package apperrors сводит ошибки хранилища и нарушения порядка отправки
// к небольшому набору категорий с фиксированными сообщениями для пользователя.
package apperrors

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Category машиночитаемая категория ошибки
type Category string

const (
	CategoryPermissionDenied    Category = "PERMISSION_DENIED"
	CategoryServiceUnavailable  Category = "SERVICE_UNAVAILABLE"
	CategoryFailedPrecondition  Category = "FAILED_PRECONDITION"
	CategoryRateLimited         Category = "RESOURCE_EXHAUSTED"
	CategoryMissingPrerequisite Category = "MISSING_PREREQUISITE"
	CategoryUnknown             Category = "UNKNOWN_ERROR"
)

var messages = map[Category]string{
	CategoryPermissionDenied:    "Unable to save data at this time. Please try again.",
	CategoryServiceUnavailable:  "Service is temporarily unavailable. Please try again in a few minutes.",
	CategoryFailedPrecondition:  "Unable to complete the operation. Please refresh and try again.",
	CategoryRateLimited:         "Too many requests. Please wait a moment before trying again.",
	CategoryMissingPrerequisite: "Please complete your profile first",
	CategoryUnknown:             "An error occurred while saving your data. Please try again.",
}

// Categories все категории в стабильном порядке
func Categories() []Category {
	return []Category{
		CategoryPermissionDenied,
		CategoryServiceUnavailable,
		CategoryFailedPrecondition,
		CategoryRateLimited,
		CategoryMissingPrerequisite,
		CategoryUnknown,
	}
}

// Message возвращает сообщение для пользователя
func (c Category) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[CategoryUnknown]
}

// Error ошибка с категорией. Error() отдает сообщение для пользователя,
// исходная причина доступна через Unwrap для логов.
type Error struct {
	Category Category
	Cause    error
}

func (e *Error) Error() string {
	return e.Category.Message()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New создает ошибку с категорией
func New(category Category, cause error) *Error {
	return &Error{Category: category, Cause: cause}
}

// MissingPrerequisite ошибка вызова отправки до сохранения профиля
func MissingPrerequisite() *Error {
	return New(CategoryMissingPrerequisite, errors.New("profile id is not set"))
}

// Classify переводит любую ошибку в категорию. Неизвестное попадает в CategoryUnknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return New(CategoryFor(status.Code(err)), err)
}

// CategoryFor сопоставляет gRPC код хранилища с категорией
func CategoryFor(code codes.Code) Category {
	switch code {
	case codes.PermissionDenied:
		return CategoryPermissionDenied
	case codes.Unavailable:
		return CategoryServiceUnavailable
	case codes.FailedPrecondition:
		return CategoryFailedPrecondition
	case codes.ResourceExhausted:
		return CategoryRateLimited
	default:
		return CategoryUnknown
	}
}

// CategoryOf возвращает категорию ошибки
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	return Classify(err).Category
}

// Is проверяет категорию ошибки
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}

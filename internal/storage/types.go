package storage

import (
	"context"
	"time"

	"risk-number-quiz/internal/quiz"
)

// Коллекции хранилища
const (
	CollectionProfiles    = "profiles"
	CollectionAssessments = "assessments"
	CollectionContacts    = "contacts"
)

// Статусы записей
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Служебные поля документа
const (
	FieldCreatedAt = "createdAt"
	FieldProfileID = "profileId"
	FieldStatus    = "status"
)

// Store документное хранилище только с добавлением записей.
// Ошибки возвращаются как gRPC status с кодами PermissionDenied, Unavailable,
// FailedPrecondition, ResourceExhausted или Unknown.
type Store interface {
	// Add сохраняет запись в коллекцию, проставляет createdAt и возвращает ID документа
	Add(ctx context.Context, collection string, record any) (string, error)
	// FindOne возвращает первый документ, подходящий под все фильтры
	FindOne(ctx context.Context, collection string, filters ...Filter) (Document, error)
	Close() error
}

// Filter условие равенства по полю документа
type Filter struct {
	Field string
	Value string
}

// Where создает фильтр равенства
func Where(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Document сохраненный документ
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	CreatedAt  time.Time      `json:"createdAt"`
	Data       map[string]any `json:"data"`
}

// ProfileRecord запись коллекции profiles
type ProfileRecord struct {
	quiz.FinancialProfile
	Status string `json:"status"`
}

// AssessmentRecord запись коллекции assessments
type AssessmentRecord struct {
	ProfileID string        `json:"profileId"`
	Answers   []quiz.Answer `json:"answers"`
	Status    string        `json:"status"`
}

// ContactRecord запись коллекции contacts
type ContactRecord struct {
	ProfileID string `json:"profileId"`
	quiz.ContactInfo
	Status string `json:"status"`
}

// NewProfileRecord создает запись профиля со статусом active
func NewProfileRecord(profile quiz.FinancialProfile) ProfileRecord {
	return ProfileRecord{FinancialProfile: profile, Status: StatusActive}
}

// NewAssessmentRecord создает запись ответов со статусом completed
func NewAssessmentRecord(profileID string, answers []quiz.Answer) AssessmentRecord {
	return AssessmentRecord{
		ProfileID: profileID,
		Answers:   append([]quiz.Answer(nil), answers...),
		Status:    StatusCompleted,
	}
}

// NewContactRecord создает запись контактов со статусом pending
func NewContactRecord(profileID string, contact quiz.ContactInfo) ContactRecord {
	return ContactRecord{ProfileID: profileID, ContactInfo: contact, Status: StatusPending}
}

package metrics

import (
	"sync"
	"time"

	"risk-number-quiz/internal/apperrors"
)

// Metrics счетчики воронки анкеты
type Metrics struct {
	mu                   sync.RWMutex
	quizzesStarted       int64
	profilesSubmitted    int64
	assessmentsCompleted int64
	contactsCaptured     int64
	writesTotal          int64
	writesSuccessful     int64
	failures             map[apperrors.Category]int64
	lastUpdateTime       time.Time
}

// Snapshot копия счетчиков на момент вызова
type Snapshot struct {
	QuizzesStarted       int64
	ProfilesSubmitted    int64
	AssessmentsCompleted int64
	ContactsCaptured     int64
	WritesTotal          int64
	WritesSuccessful     int64
	Failures             map[apperrors.Category]int64
	LastUpdateTime       time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		failures:       make(map[apperrors.Category]int64),
		lastUpdateTime: time.Now(),
	}
}

func (m *Metrics) IncrementQuizzesStarted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzesStarted++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementProfilesSubmitted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profilesSubmitted++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementAssessmentsCompleted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessmentsCompleted++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementContactsCaptured() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contactsCaptured++
	m.lastUpdateTime = time.Now()
}

// RecordWrite учитывает запись в хранилище. Для неудачной записи передается категория ошибки.
func (m *Metrics) RecordWrite(failure apperrors.Category) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writesTotal++
	if failure == "" {
		m.writesSuccessful++
	} else {
		m.failures[failure]++
	}
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failures := make(map[apperrors.Category]int64, len(m.failures))
	for category, count := range m.failures {
		failures[category] = count
	}
	return Snapshot{
		QuizzesStarted:       m.quizzesStarted,
		ProfilesSubmitted:    m.profilesSubmitted,
		AssessmentsCompleted: m.assessmentsCompleted,
		ContactsCaptured:     m.contactsCaptured,
		WritesTotal:          m.writesTotal,
		WritesSuccessful:     m.writesSuccessful,
		Failures:             failures,
		LastUpdateTime:       m.lastUpdateTime,
	}
}

// WritesFailed число неудачных записей
func (s Snapshot) WritesFailed() int64 {
	return s.WritesTotal - s.WritesSuccessful
}

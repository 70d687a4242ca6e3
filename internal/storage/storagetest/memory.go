// Package storagetest содержит хранилище в памяти для тестов.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"risk-number-quiz/internal/storage"
)

// Memory хранилище в памяти. Умеет возвращать заданные ошибки и задерживать запись.
type Memory struct {
	mu       sync.Mutex
	docs     []storage.Document
	failures map[string]error
	once     map[string]error
	gate     chan struct{}
	entered  chan struct{}
	adds     int
	seq      int
	now      time.Time
}

func NewMemory() *Memory {
	return &Memory{
		failures: make(map[string]error),
		once:     make(map[string]error),
		now:      time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC),
	}
}

// FailWith заставляет Add в коллекцию возвращать err. nil снимает ошибку.
func (m *Memory) FailWith(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, collection)
		return
	}
	m.failures[collection] = err
}

// FailNext заставляет только следующий Add в коллекцию вернуть err
func (m *Memory) FailNext(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.once[collection] = err
}

// Hold задерживает следующие вызовы Add до release. Канал entered получает
// сигнал, когда Add начал ждать.
func (m *Memory) Hold() (entered <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	m.entered = make(chan struct{}, 16)
	var once sync.Once
	return m.entered, func() {
		once.Do(func() {
			m.mu.Lock()
			m.gate = nil
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Adds число вызовов Add, включая неудачные
func (m *Memory) Adds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds
}

// Documents сохраненные документы коллекции в порядке записи
func (m *Memory) Documents(collection string) []storage.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Document
	for _, doc := range m.docs {
		if doc.Collection == collection {
			out = append(out, doc)
		}
	}
	return out
}

func (m *Memory) Add(ctx context.Context, collection string, record any) (string, error) {
	m.mu.Lock()
	m.adds++
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", storage.ContextStatus(ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", storage.ContextStatus(err)
	}
	if err := storage.ValidateCollection(collection); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.once[collection]; err != nil {
		delete(m.once, collection)
		return "", err
	}
	if err := m.failures[collection]; err != nil {
		return "", err
	}

	m.seq++
	createdAt := m.now.Add(time.Duration(m.seq) * time.Second)
	data, err := storage.EncodeRecord(record, createdAt)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("%s-%d", collection, m.seq)
	m.docs = append(m.docs, storage.Document{ID: id, Collection: collection, CreatedAt: createdAt, Data: data})
	return id, nil
}

func (m *Memory) FindOne(ctx context.Context, collection string, filters ...storage.Filter) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, storage.ContextStatus(err)
	}
	matches := []storage.Document{}
	for _, doc := range m.Documents(collection) {
		if doc.Matches(filters...) {
			matches = append(matches, doc)
		}
	}
	if len(matches) == 0 {
		return storage.Document{}, storage.ErrNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0], nil
}

func (m *Memory) Close() error {
	return nil
}

var _ storage.Store = (*Memory)(nil)

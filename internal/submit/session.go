package submit

import (
	"errors"
	"sync"

	"risk-number-quiz/internal/apperrors"
)

type operation int

const (
	opProfile operation = iota
	opAnswers
	opContact
	opCount
)

func (o operation) String() string {
	switch o {
	case opProfile:
		return "profile"
	case opAnswers:
		return "answers"
	case opContact:
		return "contact"
	default:
		return "unknown"
	}
}

// Session состояние отправки одного прохождения анкеты: ProfileID,
// незавершенные записи и последняя ошибка каждой операции.
type Session struct {
	mu        sync.Mutex
	profileID string
	pending   [opCount]int
	errs      [opCount]*apperrors.Error
	// generation растет на каждом Reset; запись, начатая до сброса, не меняет сессию
	generation uint64
}

// ticket выдается на время одной записи
type ticket struct {
	generation uint64
	profileID  string
}

func NewSession() *Session {
	return &Session{}
}

// ProfileID идентификатор профиля, пустой до успешной записи профиля
func (s *Session) ProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileID
}

// Busy true, пока выполняется хотя бы одна запись
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.pending {
		if n > 0 {
			return true
		}
	}
	return false
}

// Err первая ошибка в порядке профиль, ответы, контакты
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Reset забывает ProfileID и ошибки
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileID = ""
	s.pending = [opCount]int{}
	s.errs = [opCount]*apperrors.Error{}
	s.generation++
}

// begin проверяет предусловие операции и отмечает запись как начатую
func (s *Session) begin(op operation) (ticket, *apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs[op] = nil
	switch op {
	case opProfile:
		if s.profileID != "" || s.pending[opProfile] > 0 {
			err := apperrors.New(apperrors.CategoryFailedPrecondition, errors.New("profile already submitted for this session"))
			s.errs[op] = err
			return ticket{}, err
		}
	default:
		if s.profileID == "" {
			err := apperrors.MissingPrerequisite()
			s.errs[op] = err
			return ticket{}, err
		}
	}

	s.pending[op]++
	return ticket{generation: s.generation, profileID: s.profileID}, nil
}

// finish фиксирует результат записи. Результат записи, начатой до Reset, отбрасывается.
func (s *Session) finish(t ticket, op operation, id string, err *apperrors.Error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.generation != s.generation {
		return false
	}
	s.pending[op]--
	if err != nil {
		s.errs[op] = err
		return true
	}
	if op == opProfile {
		s.profileID = id
	}
	return true
}

// Package flow ведет пользователя по шагам анкеты: профиль, вопросы, контакты,
// результаты. Любая ошибка записи останавливает прохождение до Restart.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/scoring"
	"risk-number-quiz/internal/submit"
)

// Step шаг прохождения
type Step string

const (
	StepProfile    Step = "profile"
	StepAssessment Step = "assessment"
	StepContact    Step = "contact"
	StepResults    Step = "results"
)

var (
	ErrWrongStep = errors.New("action is not available on the current step")
	ErrBusy      = errors.New("a submission is already in progress")
	ErrHalted    = errors.New("flow stopped by an error, restart required")
	ErrRestarted = errors.New("flow was restarted while the submission was pending")
)

// Submitter записывает этапы прохождения в хранилище
type Submitter interface {
	SubmitProfile(ctx context.Context, sess *submit.Session, profile quiz.FinancialProfile) (string, error)
	SubmitAnswers(ctx context.Context, sess *submit.Session, answers []quiz.Answer) (string, error)
	SubmitContact(ctx context.Context, sess *submit.Session, contact quiz.ContactInfo) (string, error)
}

// State снимок состояния для отображения
type State struct {
	Step          Step
	QuestionIndex int
	QuestionCount int
	Answers       []quiz.Answer
	Busy          bool
	Err           error
	Assessment    *quiz.Assessment
	Profile       *quiz.FinancialProfile
	Contact       *quiz.ContactInfo
	ProfileID     string
}

// Failed true, если прохождение остановлено ошибкой
func (s State) Failed() bool {
	return s.Err != nil
}

// Machine конечный автомат одного прохождения. Безопасен для конкурентных
// вызовов: мьютекс отпускается на время записи, State не блокируется.
type Machine struct {
	mu            sync.Mutex
	questionnaire *config.Questionnaire
	scorer        *scoring.Scorer
	submitter     Submitter
	session       *submit.Session

	step       Step
	index      int
	answers    []quiz.Answer
	assessment *quiz.Assessment
	profile    *quiz.FinancialProfile
	contact    *quiz.ContactInfo
	busy       bool
	generation uint64
}

// New создает автомат на шаге profile. Анкета должна быть проверена config.Parse.
func New(q *config.Questionnaire, submitter Submitter) *Machine {
	return &Machine{
		questionnaire: q,
		scorer:        scoring.New(q),
		submitter:     submitter,
		session:       submit.NewSession(),
		step:          StepProfile,
	}
}

// State возвращает снимок состояния
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := State{
		Step:          m.step,
		QuestionIndex: m.index,
		QuestionCount: m.questionnaire.GetTotalQuestions(),
		Answers:       append([]quiz.Answer(nil), m.answers...),
		Busy:          m.busy,
		Err:           m.session.Err(),
		ProfileID:     m.session.ProfileID(),
	}
	if m.assessment != nil {
		a := *m.assessment
		state.Assessment = &a
	}
	if m.profile != nil {
		p := *m.profile
		state.Profile = &p
	}
	if m.contact != nil {
		c := *m.contact
		state.Contact = &c
	}
	return state
}

// CurrentQuestion вопрос под указателем. false вне шага assessment.
func (m *Machine) CurrentQuestion() (config.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepAssessment {
		return config.Question{}, false
	}
	return m.questionnaire.GetQuestion(m.index)
}

// Questionnaire анкета автомата
func (m *Machine) Questionnaire() *config.Questionnaire {
	return m.questionnaire
}

// SubmitProfile проверяет и сохраняет профиль, затем открывает первый вопрос
func (m *Machine) SubmitProfile(ctx context.Context, profile quiz.FinancialProfile) error {
	m.mu.Lock()
	if err := m.guard(StepProfile); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := profile.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	gen, sess := m.startWrite()
	m.mu.Unlock()

	_, err := m.submitter.SubmitProfile(ctx, sess, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stale := m.finishWrite(gen); stale != nil {
		return stale
	}
	if err != nil {
		return err
	}
	m.profile = &profile
	m.step = StepAssessment
	m.index = 0
	m.answers = nil
	return nil
}

// Answer принимает значение для текущего вопроса. После последнего вопроса
// считает оценку и сохраняет ответы.
func (m *Machine) Answer(ctx context.Context, value int) error {
	m.mu.Lock()
	if err := m.guard(StepAssessment); err != nil {
		m.mu.Unlock()
		return err
	}
	question, ok := m.questionnaire.GetQuestion(m.index)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("question %d: %w", m.index, ErrWrongStep)
	}
	if !question.InScale(value) {
		m.mu.Unlock()
		min, max := question.Scale()
		return fmt.Errorf("%w: answer for %q must be between %d and %d", quiz.ErrInvalidInput, question.ID, min, max)
	}

	m.answers = append(m.answers, quiz.Answer{QuestionID: question.ID, Value: value})
	if m.index < m.questionnaire.GetTotalQuestions()-1 {
		m.index++
		m.mu.Unlock()
		return nil
	}

	assessment, err := m.scorer.Calculate(m.answers)
	if err != nil {
		m.answers = m.answers[:len(m.answers)-1]
		m.mu.Unlock()
		return fmt.Errorf("score answers: %w", err)
	}
	m.assessment = &assessment
	answers := append([]quiz.Answer(nil), m.answers...)
	gen, sess := m.startWrite()
	m.mu.Unlock()

	_, err = m.submitter.SubmitAnswers(ctx, sess, answers)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stale := m.finishWrite(gen); stale != nil {
		return stale
	}
	if err != nil {
		return err
	}
	m.step = StepContact
	return nil
}

// SubmitContact проверяет и сохраняет контакты, затем открывает результаты
func (m *Machine) SubmitContact(ctx context.Context, contact quiz.ContactInfo) error {
	contact = contact.Normalize()

	m.mu.Lock()
	if err := m.guard(StepContact); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := contact.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	gen, sess := m.startWrite()
	m.mu.Unlock()

	_, err := m.submitter.SubmitContact(ctx, sess, contact)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stale := m.finishWrite(gen); stale != nil {
		return stale
	}
	if err != nil {
		return err
	}
	m.contact = &contact
	m.step = StepResults
	return nil
}

// Restart начинает прохождение заново из любого состояния, включая ошибку
// и незавершенную запись. Результат такой записи будет отброшен.
func (m *Machine) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.session.Reset()
	m.step = StepProfile
	m.index = 0
	m.answers = nil
	m.assessment = nil
	m.profile = nil
	m.contact = nil
	m.busy = false
}

// guard проверяет, что действие допустимо. Вызывается под m.mu.
func (m *Machine) guard(step Step) error {
	if m.session.Err() != nil {
		return ErrHalted
	}
	if m.busy {
		return ErrBusy
	}
	if m.step != step {
		return fmt.Errorf("%w: expected %s, current %s", ErrWrongStep, step, m.step)
	}
	return nil
}

func (m *Machine) startWrite() (uint64, *submit.Session) {
	m.busy = true
	return m.generation, m.session
}

func (m *Machine) finishWrite(gen uint64) error {
	if gen != m.generation {
		return ErrRestarted
	}
	m.busy = false
	return nil
}

package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"risk-number-quiz/internal/apperrors"
	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/storage/storagetest"
	"risk-number-quiz/internal/submit"
)

var (
	profileInput = []string{"52", "110000", "300000", "5500", "12"}
	contactInput = []string{"Ada Lovelace", "ada@example.com", ""}
)

func newModel(t *testing.T) (Model, *flow.Machine, *storagetest.Memory) {
	t.Helper()
	q, err := config.Default()
	require.NoError(t, err)
	store := storagetest.NewMemory()
	machine := flow.New(q, submit.New(store))
	return New(context.Background(), machine, time.Second), machine, store
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

// settle выполняет команду записи и возвращает ее результат в модель.
// Команды мигания курсора не запускаются: они ждут таймер.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if !m.pending || cmd == nil {
		return m
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		batch = tea.BatchMsg{func() tea.Msg { return msg }}
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(writeDoneMsg); ok {
			m, _ = update(t, m, done)
		}
	}
	return m
}

func enterText(t *testing.T, m Model, value string) Model {
	t.Helper()
	if value != "" {
		m, _ = update(t, m, runes(value))
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	return settle(t, m, cmd)
}

func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	m, cmd := update(t, m, key)
	return settle(t, m, cmd)
}

func fill(t *testing.T, m Model, values []string) Model {
	t.Helper()
	for _, v := range values {
		m = enterText(t, m, v)
	}
	return m
}

func TestModelCompletesQuiz(t *testing.T) {
	m, machine, store := newModel(t)

	assert.Contains(t, m.View(), "How old are you?")
	m = fill(t, m, profileInput)
	require.Equal(t, flow.StepAssessment, machine.State().Step)
	assert.Contains(t, m.View(), "Question 1 of 10")

	for i := 0; i < machine.State().QuestionCount; i++ {
		m = press(t, m, runes("1"))
	}
	require.Equal(t, flow.StepContact, machine.State().Step)
	assert.Contains(t, m.View(), "What is your name?")

	m = fill(t, m, contactInput)
	state := machine.State()
	require.Equal(t, flow.StepResults, state.Step)

	view := m.View()
	assert.Contains(t, view, "Your Risk Number: 1 / 99")
	assert.Contains(t, view, "Profile ID: "+state.ProfileID)
	assert.Len(t, store.Documents(storage.CollectionContacts), 1)
	assert.False(t, m.pending)
}

func TestModelInvalidInputShowsNotice(t *testing.T) {
	m, machine, _ := newModel(t)

	m = enterText(t, m, "abc")
	assert.Equal(t, 0, m.field)
	assert.Contains(t, m.View(), `"abc" is not a whole number`)

	m = enterText(t, m, "17")
	assert.Equal(t, 0, m.field)
	assert.Contains(t, m.View(), "Age must be between 18 and 120")

	m = enterText(t, m, "40")
	assert.Equal(t, 1, m.field)
	assert.Empty(t, m.notice)
	assert.Equal(t, flow.StepProfile, machine.State().Step)
}

func TestModelCursorSelectsOption(t *testing.T) {
	m, machine, _ := newModel(t)
	m = fill(t, m, profileInput)

	question, ok := machine.CurrentQuestion()
	require.True(t, ok)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, runes("j"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	answers := machine.State().Answers
	require.Len(t, answers, 1)
	assert.Equal(t, question.Options[1].Value, answers[0].Value)
	assert.Equal(t, 0, m.cursor)
}

func TestModelRejectsOutOfRangeDigit(t *testing.T) {
	m, machine, _ := newModel(t)
	m = fill(t, m, profileInput)

	m = press(t, m, runes("9"))
	assert.Empty(t, machine.State().Answers)
	assert.Contains(t, m.View(), "Choose 1 to")
}

func TestModelStoreFailureShowsOverlay(t *testing.T) {
	m, machine, store := newModel(t)
	store.FailNext(storage.CollectionProfiles, status.Error(codes.Unavailable, "backend down"))

	m = fill(t, m, profileInput)
	require.True(t, machine.State().Failed())
	assert.Contains(t, m.View(), apperrors.CategoryServiceUnavailable.Message())

	m = press(t, m, runes("x"))
	assert.True(t, machine.State().Failed())

	m = press(t, m, runes("r"))
	state := machine.State()
	assert.False(t, state.Failed())
	assert.Equal(t, flow.StepProfile, state.Step)
	assert.Equal(t, 0, m.field)

	m = fill(t, m, profileInput)
	assert.Equal(t, flow.StepAssessment, machine.State().Step)
}

func TestModelIgnoresKeysWhilePending(t *testing.T) {
	m, _, _ := newModel(t)
	m.pending = true

	m, cmd := update(t, m, runes("5"))
	assert.Nil(t, cmd)
	assert.Empty(t, m.input.Value())
}

func TestModelQuitKeys(t *testing.T) {
	m, _, _ := newModel(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModelRestartFromResults(t *testing.T) {
	m, machine, _ := newModel(t)
	m = fill(t, m, profileInput)
	for i := 0; i < machine.State().QuestionCount; i++ {
		m = press(t, m, runes("2"))
	}
	m = fill(t, m, contactInput)
	require.Equal(t, flow.StepResults, machine.State().Step)

	m = press(t, m, runes("r"))
	assert.Equal(t, flow.StepProfile, machine.State().Step)
	assert.Empty(t, machine.State().ProfileID)
	assert.Contains(t, m.View(), "How old are you?")
}

func TestProgress(t *testing.T) {
	assert.Contains(t, progress(0, 10), "Question 1 of 10")
	assert.Contains(t, progress(9, 10), "Question 10 of 10")
}

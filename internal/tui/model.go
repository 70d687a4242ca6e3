// Package tui интерактивная анкета в терминале на bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/render"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptStyle  = lipgloss.NewStyle().Bold(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1)
	resultStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("42")).Padding(0, 1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	progressDone = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// writeDoneMsg результат записи, выполненной в команде
type writeDoneMsg struct {
	err error
}

// Model модель bubbletea поверх flow.Machine
type Model struct {
	ctx          context.Context
	machine      *flow.Machine
	printer      *render.Printer
	writeTimeout time.Duration

	input   textinput.Model
	spinner spinner.Model
	field   int
	profile quiz.FinancialProfile
	contact quiz.ContactInfo
	cursor  int
	notice  string
	pending bool
	width   int
}

// New создает модель. ctx ограничивает все записи.
func New(ctx context.Context, machine *flow.Machine, writeTimeout time.Duration) Model {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 128
	ti.Width = 48
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:          ctx,
		machine:      machine,
		printer:      render.Default(),
		writeTimeout: writeTimeout,
		input:        ti,
		spinner:      sp,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case writeDoneMsg:
		return m.handleWriteDone(msg.err), nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.pending {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.machine.State()
	if state.Failed() || state.Step == flow.StepResults {
		switch msg.String() {
		case "r", "enter":
			m.restart()
			return m, nil
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	}

	switch state.Step {
	case flow.StepProfile:
		return m.handleProfileKey(msg)
	case flow.StepAssessment:
		return m.handleQuestionKey(msg)
	case flow.StepContact:
		return m.handleContactKey(msg)
	}
	return m, nil
}

func (m Model) handleProfileKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	fields := quiz.ProfileFields()
	if err := fields[m.field].Apply(&m.profile, m.input.Value()); err != nil {
		m.notice = inputMessage(err)
		return m, nil
	}
	m.notice = ""
	m.input.Reset()
	m.field++
	if m.field < len(fields) {
		return m, nil
	}

	profile := m.profile
	return m.startWrite(func(ctx context.Context) error { return m.machine.SubmitProfile(ctx, profile) })
}

func (m Model) handleQuestionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	question, ok := m.machine.CurrentQuestion()
	if !ok {
		return m, nil
	}

	switch key := msg.String(); key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(question.Options)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
	default:
		number := 0
		if _, err := fmt.Sscanf(key, "%d", &number); err != nil {
			return m, nil
		}
		if number < 1 || number > len(question.Options) {
			m.notice = fmt.Sprintf("Choose 1 to %d", len(question.Options))
			return m, nil
		}
		m.cursor = number - 1
	}

	value, _ := render.OptionValue(question, m.cursor+1)
	m.notice = ""
	return m.startWrite(func(ctx context.Context) error { return m.machine.Answer(ctx, value) })
}

func (m Model) handleContactKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	fields := quiz.ContactFields()
	if err := fields[m.field].Apply(&m.contact, m.input.Value()); err != nil {
		m.notice = inputMessage(err)
		return m, nil
	}
	m.notice = ""
	m.input.Reset()
	m.field++
	if m.field < len(fields) {
		return m, nil
	}

	contact := m.contact
	return m.startWrite(func(ctx context.Context) error { return m.machine.SubmitContact(ctx, contact) })
}

func (m Model) startWrite(fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.pending = true
	parent := m.ctx
	timeout := m.writeTimeout
	write := func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return writeDoneMsg{err: fn(ctx)}
	}
	return m, tea.Batch(m.spinner.Tick, write)
}

func (m Model) handleWriteDone(err error) Model {
	m.pending = false
	switch {
	case err == nil:
		state := m.machine.State()
		if state.Step != flow.StepAssessment {
			m.resetForms()
		}
		m.cursor = 0
	case errors.Is(err, flow.ErrRestarted):
	case errors.Is(err, quiz.ErrInvalidInput):
		m.notice = inputMessage(err)
		m.resetForms()
	default:
		// ошибка хранилища видна через State().Err
		m.resetForms()
	}
	return m
}

func (m *Model) restart() {
	m.machine.Restart()
	m.resetForms()
	m.cursor = 0
	m.notice = ""
}

func (m *Model) resetForms() {
	m.field = 0
	m.profile = quiz.FinancialProfile{}
	m.contact = quiz.ContactInfo{}
	m.input.Reset()
}

func (m Model) View() string {
	state := m.machine.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.machine.Questionnaire().Title))
	b.WriteString("\n\n")

	switch {
	case state.Failed():
		b.WriteString(errorStyle.Render(state.Err.Error()))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("r: start over · q: quit"))
		return b.String()
	case state.Step == flow.StepProfile:
		m.viewForm(&b, quiz.ProfileFields()[min(m.field, len(quiz.ProfileFields())-1)].Prompt, m.field, len(quiz.ProfileFields()))
	case state.Step == flow.StepAssessment:
		m.viewQuestion(&b, state)
	case state.Step == flow.StepContact:
		m.viewForm(&b, quiz.ContactFields()[min(m.field, len(quiz.ContactFields())-1)].Prompt, m.field, len(quiz.ContactFields()))
	case state.Step == flow.StepResults && state.Assessment != nil:
		b.WriteString(resultStyle.Render(m.printer.Assessment(*state.Assessment)))
		fmt.Fprintf(&b, "\n\nProfile ID: %s\n\n", state.ProfileID)
		b.WriteString(helpStyle.Render("r: start new quiz · q: quit"))
		return b.String()
	}

	if m.pending {
		fmt.Fprintf(&b, "\n%s Saving...", m.spinner.View())
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter: confirm · ctrl+c: quit"))
	return b.String()
}

func (m Model) viewForm(b *strings.Builder, prompt string, field, total int) {
	fmt.Fprintf(b, "%s\n", helpStyle.Render(fmt.Sprintf("Step %d of %d", min(field+1, total), total)))
	b.WriteString(promptStyle.Render(prompt))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
}

func (m Model) viewQuestion(b *strings.Builder, state flow.State) {
	question, ok := m.machine.CurrentQuestion()
	if !ok {
		return
	}
	b.WriteString(progress(state.QuestionIndex, state.QuestionCount))
	fmt.Fprintf(b, "\n\n%s\n\n", promptStyle.Render(question.Text))
	for i, opt := range question.Options {
		line := fmt.Sprintf("%d) %s", i+1, opt.Label)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
}

func progress(index, total int) string {
	const width = 20
	done := 0
	if total > 0 {
		done = width * index / total
	}
	bar := progressDone.Render(strings.Repeat("█", done)) + strings.Repeat("░", width-done)
	return fmt.Sprintf("%s  Question %d of %d", bar, index+1, total)
}

func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), quiz.ErrInvalidInput.Error()+": ")
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// Run запускает программу bubbletea
func Run(ctx context.Context, machine *flow.Machine, writeTimeout time.Duration) error {
	p := tea.NewProgram(New(ctx, machine, writeTimeout), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

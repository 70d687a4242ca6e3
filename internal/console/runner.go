// Package console проводит анкету в текстовом режиме поверх io.Reader и io.Writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/render"
)

// Runner текстовое прохождение анкеты
type Runner struct {
	machine      *flow.Machine
	scanner      *bufio.Scanner
	out          io.Writer
	printer      *render.Printer
	writeTimeout time.Duration
}

// New создает Runner. writeTimeout ограничивает каждую запись в хранилище.
func New(machine *flow.Machine, in io.Reader, out io.Writer, writeTimeout time.Duration) *Runner {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	return &Runner{
		machine:      machine,
		scanner:      bufio.NewScanner(in),
		out:          out,
		printer:      render.Default(),
		writeTimeout: writeTimeout,
	}
}

// Run проводит анкеты, пока пользователь не откажется от повтора или не закончится ввод.
// Конец ввода посреди анкеты возвращает io.ErrUnexpectedEOF.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.runOnce(ctx)
		switch {
		case err == nil:
			if !r.confirm("Take the quiz again? [y/N]: ", false) {
				return nil
			}
		case errors.Is(err, errHalted):
			if !r.confirm("Start over? [Y/n]: ", true) {
				return nil
			}
		default:
			return err
		}
		r.machine.Restart()
	}
}

var errHalted = errors.New("quiz halted")

func (r *Runner) runOnce(ctx context.Context) error {
	r.println(r.machine.Questionnaire().Title)
	r.println("")

	if err := r.collectProfile(ctx); err != nil {
		return err
	}
	if err := r.collectAnswers(ctx); err != nil {
		return err
	}
	if err := r.collectContact(ctx); err != nil {
		return err
	}

	state := r.machine.State()
	if state.Assessment == nil {
		return errHalted
	}
	r.println("")
	r.println(r.printer.Assessment(*state.Assessment))
	r.printf("\nProfile ID: %s\n", state.ProfileID)
	return nil
}

func (r *Runner) collectProfile(ctx context.Context) error {
	fields := quiz.ProfileFields()
	for {
		var profile quiz.FinancialProfile
		for _, field := range fields {
			if err := r.ask(field.Prompt, func(input string) error { return field.Apply(&profile, input) }); err != nil {
				return err
			}
		}

		err := r.write(ctx, func(ctx context.Context) error { return r.machine.SubmitProfile(ctx, profile) })
		if errors.Is(err, quiz.ErrInvalidInput) {
			r.printf("%v\nLet's try again.\n", err)
			continue
		}
		if err != nil {
			return err
		}
		r.println("")
		return nil
	}
}

func (r *Runner) collectAnswers(ctx context.Context) error {
	for {
		question, ok := r.machine.CurrentQuestion()
		if !ok {
			return nil
		}
		state := r.machine.State()
		r.println(r.printer.Question(question, state.QuestionIndex, state.QuestionCount))

		var value int
		err := r.ask("Your answer: ", func(input string) error {
			number, err := strconv.Atoi(strings.TrimSpace(input))
			v, valid := render.OptionValue(question, number)
			if err != nil || !valid {
				return fmt.Errorf("please enter a number from 1 to %d", len(question.Options))
			}
			value = v
			return nil
		})
		if err != nil {
			return err
		}

		if err := r.write(ctx, func(ctx context.Context) error { return r.machine.Answer(ctx, value) }); err != nil {
			return err
		}
		r.println("")
	}
}

func (r *Runner) collectContact(ctx context.Context) error {
	fields := quiz.ContactFields()
	for {
		var contact quiz.ContactInfo
		for _, field := range fields {
			if err := r.ask(field.Prompt, func(input string) error { return field.Apply(&contact, input) }); err != nil {
				return err
			}
		}

		err := r.write(ctx, func(ctx context.Context) error { return r.machine.SubmitContact(ctx, contact) })
		if errors.Is(err, quiz.ErrInvalidInput) {
			r.printf("%v\n", err)
			continue
		}
		return err
	}
}

// write выполняет запись с таймаутом. Ошибка хранилища печатается и превращается в errHalted.
func (r *Runner) write(ctx context.Context, fn func(context.Context) error) error {
	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	err := fn(writeCtx)
	if err == nil || errors.Is(err, quiz.ErrInvalidInput) {
		return err
	}
	if state := r.machine.State(); state.Failed() {
		r.printf("\n%s\n", state.Err.Error())
		return errHalted
	}
	return err
}

// ask повторяет вопрос, пока apply не примет ввод
func (r *Runner) ask(prompt string, apply func(string) error) error {
	for {
		r.printf("%s ", strings.TrimRight(prompt, " "))
		line, ok := r.readLine()
		if !ok {
			return io.ErrUnexpectedEOF
		}
		err := apply(line)
		if err == nil {
			return nil
		}
		r.printf("%v\n", err)
	}
}

func (r *Runner) confirm(prompt string, defaultYes bool) bool {
	r.printf("\n%s", prompt)
	line, ok := r.readLine()
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "":
		return defaultYes
	default:
		return false
	}
}

func (r *Runner) readLine() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.scanner.Text()), true
}

func (r *Runner) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

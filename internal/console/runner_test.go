package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/storage/storagetest"
	"risk-number-quiz/internal/submit"
)

func newRunner(t *testing.T, input string) (*Runner, *bytes.Buffer, *storagetest.Memory) {
	t.Helper()
	q, err := config.Default()
	require.NoError(t, err)
	store := storagetest.NewMemory()
	machine := flow.New(q, submit.New(store))
	out := &bytes.Buffer{}
	return New(machine, strings.NewReader(input), out, time.Second), out, store
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

var (
	profileInput = []string{"52", "110000", "$300,000", "5,500", "12"}
	contactInput = []string{"Ada Lovelace", "ada@example.com", "skip"}
)

func answers(value string) []string {
	out := make([]string, 10)
	for i := range out {
		out[i] = value
	}
	return out
}

func script(groups ...[]string) string {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	return lines(all...)
}

func TestRunCompletesQuiz(t *testing.T) {
	r, out, store := newRunner(t, script(profileInput, answers("1"), contactInput, []string{"n"}))

	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "What is My Risk Number?")
	assert.Contains(t, text, "Question 10 of 10")
	assert.Contains(t, text, "Your Risk Number: 1 / 99")
	assert.Contains(t, text, "Profile ID: ")
	assert.Len(t, store.Documents(storage.CollectionContacts), 1)
}

func TestRunRepromptsInvalidInput(t *testing.T) {
	input := script([]string{"seventeen", "17"}, profileInput, []string{"0", "7"}, answers("2"), []string{""}, contactInput, []string{""})
	r, out, _ := newRunner(t, input)

	require.NoError(t, r.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, `"seventeen" is not a whole number`)
	assert.Contains(t, text, "age must be between 18 and 120")
	assert.Contains(t, text, "please enter a number from 1 to 5")
	assert.Contains(t, text, "name is required")
	assert.Contains(t, text, "Your Risk Number:")
}

func TestRunHaltsOnStoreErrorAndRestarts(t *testing.T) {
	input := script(profileInput, []string{"y"}, profileInput, answers("3"), contactInput, []string{"no"})
	r, out, store := newRunner(t, input)
	store.FailNext(storage.CollectionProfiles, status.Error(codes.PermissionDenied, "denied"))

	require.NoError(t, r.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Unable to save data at this time. Please try again.")
	assert.Contains(t, text, "Start over?")
	assert.Contains(t, text, "Your Risk Number:")
}

func TestRunUnexpectedEOF(t *testing.T) {
	r, _, _ := newRunner(t, lines("40", "1000"))
	assert.ErrorIs(t, r.Run(context.Background()), io.ErrUnexpectedEOF)
}

func TestRunCanceledContext(t *testing.T) {
	r, _, _ := newRunner(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

package flow

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"risk-number-quiz/internal/apperrors"
	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/storage/storagetest"
	"risk-number-quiz/internal/submit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	validProfile = quiz.FinancialProfile{Age: 35, AnnualIncome: 120000, TotalSavings: 40000, MonthlyExpenses: 4000, InvestmentHorizonYears: 30}
	validContact = quiz.ContactInfo{Name: " Grace Hopper ", Email: "grace@example.com"}
)

func newMachine(t *testing.T) (*Machine, *storagetest.Memory) {
	t.Helper()
	q, err := config.Default()
	require.NoError(t, err)
	store := storagetest.NewMemory()
	return New(q, submit.New(store)), store
}

func answerAll(t *testing.T, m *Machine, value func(config.Question) int) {
	t.Helper()
	for {
		question, ok := m.CurrentQuestion()
		require.True(t, ok)
		require.NoError(t, m.Answer(context.Background(), value(question)))
		if m.State().Step != StepAssessment {
			return
		}
	}
}

func lowest(q config.Question) int {
	min, _ := q.Scale()
	return min
}

func highest(q config.Question) int {
	_, max := q.Scale()
	return max
}

func TestHappyPath(t *testing.T) {
	m, store := newMachine(t)
	ctx := context.Background()

	state := m.State()
	assert.Equal(t, StepProfile, state.Step)
	assert.Equal(t, 10, state.QuestionCount)

	require.NoError(t, m.SubmitProfile(ctx, validProfile))
	state = m.State()
	assert.Equal(t, StepAssessment, state.Step)
	assert.Equal(t, 0, state.QuestionIndex)
	profileID := state.ProfileID
	require.NotEmpty(t, profileID)

	answerAll(t, m, highest)
	state = m.State()
	assert.Equal(t, StepContact, state.Step)
	assert.Equal(t, state.QuestionCount-1, state.QuestionIndex)
	require.NotNil(t, state.Assessment)
	assert.Equal(t, 99, state.Assessment.RiskNumber)
	assert.Equal(t, "aggressive", state.Assessment.Category)

	require.NoError(t, m.SubmitContact(ctx, validContact))
	state = m.State()
	assert.Equal(t, StepResults, state.Step)
	assert.Equal(t, profileID, state.ProfileID)
	require.NotNil(t, state.Contact)
	assert.Equal(t, "Grace Hopper", state.Contact.Name)
	assert.False(t, state.Failed())

	for _, collection := range []string{storage.CollectionAssessments, storage.CollectionContacts} {
		docs := store.Documents(collection)
		require.Len(t, docs, 1, collection)
		assert.Equal(t, profileID, docs[0].Data[storage.FieldProfileID], collection)
	}
}

func TestAllMinimumAnswersIsLowestTier(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.SubmitProfile(context.Background(), validProfile))
	answerAll(t, m, lowest)

	state := m.State()
	require.NotNil(t, state.Assessment)
	assert.Equal(t, 1, state.Assessment.RiskNumber)
	assert.Equal(t, m.Questionnaire().Tiers[0].ID, state.Assessment.Category)
}

func TestAnswersAreRecordedInQuestionOrder(t *testing.T) {
	m, store := newMachine(t)
	require.NoError(t, m.SubmitProfile(context.Background(), validProfile))
	answerAll(t, m, lowest)

	record, err := storage.FindAssessment(context.Background(), store, m.State().ProfileID)
	require.NoError(t, err)
	require.NotNil(t, record)

	var want []quiz.Answer
	for _, q := range m.Questionnaire().Questions {
		want = append(want, quiz.Answer{QuestionID: q.ID, Value: lowest(q)})
	}
	if diff := cmp.Diff(want, record.Answers); diff != "" {
		t.Fatalf("stored answers mismatch (-want +got):\n%s", diff)
	}
}

func TestUnavailableEntersOverlayAndKeepsState(t *testing.T) {
	m, store := newMachine(t)
	ctx := context.Background()
	require.NoError(t, m.SubmitProfile(ctx, validProfile))

	store.FailWith(storage.CollectionAssessments, status.Error(codes.Unavailable, "backend offline"))
	q := m.Questionnaire()
	for i := 0; i < len(q.Questions)-1; i++ {
		require.NoError(t, m.Answer(ctx, 2))
	}
	before := m.State()

	err := m.Answer(ctx, 3)
	require.Error(t, err)
	assert.Equal(t, "Service is temporarily unavailable. Please try again in a few minutes.", err.Error())

	state := m.State()
	require.True(t, state.Failed())
	assert.Equal(t, "Service is temporarily unavailable. Please try again in a few minutes.", state.Err.Error())
	assert.True(t, apperrors.Is(state.Err, apperrors.CategoryServiceUnavailable))
	assert.Equal(t, StepAssessment, state.Step)
	assert.Equal(t, before.QuestionIndex, state.QuestionIndex)
	assert.Equal(t, before.ProfileID, state.ProfileID)
	require.NotNil(t, state.Assessment, "assessment is computed before the write")
	assert.False(t, state.Busy)

	assert.ErrorIs(t, m.Answer(ctx, 1), ErrHalted)
	assert.ErrorIs(t, m.SubmitContact(ctx, validContact), ErrHalted)
	assert.ErrorIs(t, m.SubmitProfile(ctx, validProfile), ErrHalted)
	assert.Empty(t, store.Documents(storage.CollectionAssessments))

	m.Restart()
	state = m.State()
	assert.Equal(t, StepProfile, state.Step)
	assert.False(t, state.Failed())
}

func TestProfileFailureStaysOnProfile(t *testing.T) {
	m, store := newMachine(t)
	store.FailWith(storage.CollectionProfiles, status.Error(codes.PermissionDenied, "rules"))

	err := m.SubmitProfile(context.Background(), validProfile)
	assert.EqualError(t, err, "Unable to save data at this time. Please try again.")

	state := m.State()
	assert.Equal(t, StepProfile, state.Step)
	assert.Empty(t, state.ProfileID)
	assert.Nil(t, state.Profile)
	assert.True(t, state.Failed())
}

func TestWrongStepBusyAndValidationDoNotHalt(t *testing.T) {
	m, _ := newMachine(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.Answer(ctx, 1), ErrWrongStep)
	assert.ErrorIs(t, m.SubmitContact(ctx, validContact), ErrWrongStep)
	assert.ErrorIs(t, m.SubmitProfile(ctx, quiz.FinancialProfile{Age: 12}), quiz.ErrInvalidInput)
	assert.False(t, m.State().Failed())

	require.NoError(t, m.SubmitProfile(ctx, validProfile))
	assert.ErrorIs(t, m.SubmitProfile(ctx, validProfile), ErrWrongStep)
	assert.ErrorIs(t, m.Answer(ctx, 42), quiz.ErrInvalidInput)
	assert.Equal(t, 0, m.State().QuestionIndex)
	assert.False(t, m.State().Failed())

	answerAll(t, m, lowest)
	assert.ErrorIs(t, m.SubmitContact(ctx, quiz.ContactInfo{Name: "x", Email: "not-an-email"}), quiz.ErrInvalidInput)
	assert.Equal(t, StepContact, m.State().Step)
	assert.False(t, m.State().Failed())
}

func TestBusyRefusesEntries(t *testing.T) {
	m, store := newMachine(t)
	entered, release := store.Hold()

	done := make(chan error, 1)
	go func() { done <- m.SubmitProfile(context.Background(), validProfile) }()
	<-entered

	state := m.State()
	assert.True(t, state.Busy)
	assert.Equal(t, StepProfile, state.Step)
	assert.ErrorIs(t, m.SubmitProfile(context.Background(), validProfile), ErrBusy)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, StepAssessment, m.State().Step)
	assert.False(t, m.State().Busy)
}

func TestRestartDuringPendingWrite(t *testing.T) {
	m, store := newMachine(t)
	entered, release := store.Hold()

	done := make(chan error, 1)
	go func() { done <- m.SubmitProfile(context.Background(), validProfile) }()
	<-entered

	m.Restart()
	release()
	assert.ErrorIs(t, <-done, ErrRestarted)

	state := m.State()
	assert.Equal(t, StepProfile, state.Step)
	assert.Empty(t, state.ProfileID)
	assert.False(t, state.Busy)
	require.NoError(t, m.SubmitProfile(context.Background(), validProfile))
}

func TestRestartFromEveryState(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		reach func(t *testing.T, m *Machine, store *storagetest.Memory)
	}{
		{"profile", func(*testing.T, *Machine, *storagetest.Memory) {}},
		{"assessment", func(t *testing.T, m *Machine, _ *storagetest.Memory) {
			require.NoError(t, m.SubmitProfile(ctx, validProfile))
			require.NoError(t, m.Answer(ctx, 3))
		}},
		{"contact", func(t *testing.T, m *Machine, _ *storagetest.Memory) {
			require.NoError(t, m.SubmitProfile(ctx, validProfile))
			answerAll(t, m, highest)
		}},
		{"results", func(t *testing.T, m *Machine, _ *storagetest.Memory) {
			require.NoError(t, m.SubmitProfile(ctx, validProfile))
			answerAll(t, m, highest)
			require.NoError(t, m.SubmitContact(ctx, validContact))
		}},
		{"error", func(t *testing.T, m *Machine, store *storagetest.Memory) {
			require.NoError(t, m.SubmitProfile(ctx, validProfile))
			store.FailWith(storage.CollectionContacts, status.Error(codes.ResourceExhausted, "quota"))
			answerAll(t, m, highest)
			require.Error(t, m.SubmitContact(ctx, validContact))
			require.True(t, m.State().Failed())
			store.FailWith(storage.CollectionContacts, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newMachine(t)
			tt.reach(t, m, store)

			m.Restart()
			want := State{Step: StepProfile, QuestionCount: m.Questionnaire().GetTotalQuestions()}
			if diff := cmp.Diff(want, m.State()); diff != "" {
				t.Fatalf("state after restart mismatch (-want +got):\n%s", diff)
			}

			// новое прохождение получает новый ProfileID
			previous := len(store.Documents(storage.CollectionProfiles))
			require.NoError(t, m.SubmitProfile(ctx, validProfile))
			assert.Len(t, store.Documents(storage.CollectionProfiles), previous+1)
		})
	}
}

func TestStateIsSnapshot(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.SubmitProfile(context.Background(), validProfile))
	require.NoError(t, m.Answer(context.Background(), 4))

	state := m.State()
	state.Answers[0].Value = 1
	state.Profile.Age = 99

	fresh := m.State()
	assert.Equal(t, 4, fresh.Answers[0].Value)
	assert.Equal(t, validProfile.Age, fresh.Profile.Age)
}

func TestCurrentQuestionOutsideAssessment(t *testing.T) {
	m, _ := newMachine(t)
	_, ok := m.CurrentQuestion()
	assert.False(t, ok)
}

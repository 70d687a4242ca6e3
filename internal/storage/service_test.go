package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"risk-number-quiz/internal/quiz"
)

func openTempFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "results"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenFileStoreRequiresPath(t *testing.T) {
	_, err := OpenFileStore(" ")
	assert.Error(t, err)
}

func TestFileStoreAddAndGet(t *testing.T) {
	store := openTempFileStore(t)
	fixed := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	profile := quiz.FinancialProfile{Age: 40, AnnualIncome: 85000, TotalSavings: 50000, MonthlyExpenses: 3000, InvestmentHorizonYears: 25}
	id, err := store.Add(context.Background(), CollectionProfiles, NewProfileRecord(profile))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.Get(context.Background(), CollectionProfiles, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, CollectionProfiles, doc.Collection)
	assert.True(t, fixed.Equal(doc.CreatedAt))
	assert.Equal(t, StatusActive, doc.Data[FieldStatus])
	assert.Equal(t, fixed.Format(time.RFC3339Nano), doc.Data[FieldCreatedAt])

	var got ProfileRecord
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, profile, got.FinancialProfile)

	ids, err := store.List(context.Background(), CollectionProfiles)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestFileStoreGetMissing(t *testing.T) {
	store := openTempFileStore(t)

	_, err := store.Get(context.Background(), CollectionContacts, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), CollectionContacts, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsUnknownCollection(t *testing.T) {
	store := openTempFileStore(t)

	_, err := store.Add(context.Background(), "leads", map[string]any{"a": 1})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestFileStoreRejectsNonObjectRecord(t *testing.T) {
	store := openTempFileStore(t)

	_, err := store.Add(context.Background(), CollectionProfiles, []int{1, 2})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestFileStoreCanceledContextIsUnavailable(t *testing.T) {
	store := openTempFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Add(ctx, CollectionProfiles, NewProfileRecord(quiz.FinancialProfile{Age: 30}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestFileStorePermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	store := openTempFileStore(t)
	require.NoError(t, os.Chmod(store.root, 0o500))
	t.Cleanup(func() { _ = os.Chmod(store.root, 0o755) })

	_, err := store.Add(context.Background(), CollectionProfiles, NewProfileRecord(quiz.FinancialProfile{Age: 30}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestFindAssessment(t *testing.T) {
	store := openTempFileStore(t)
	ctx := context.Background()
	answers := []quiz.Answer{{QuestionID: "horizon", Value: 3}, {QuestionID: "drawdown", Value: 2}}

	_, err := store.Add(ctx, CollectionAssessments, NewAssessmentRecord("other", answers[:1]))
	require.NoError(t, err)
	_, err = store.Add(ctx, CollectionAssessments, NewAssessmentRecord("profile-1", answers))
	require.NoError(t, err)

	got, err := FindAssessment(ctx, store, "profile-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "profile-1", got.ProfileID)
	assert.Equal(t, answers, got.Answers)
	assert.Equal(t, StatusCompleted, got.Status)

	missing, err := FindAssessment(ctx, store, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordConstructorsCopyAnswers(t *testing.T) {
	answers := []quiz.Answer{{QuestionID: "a", Value: 1}}
	record := NewAssessmentRecord("p", answers)
	answers[0].Value = 9

	assert.Equal(t, 1, record.Answers[0].Value)
	assert.Equal(t, StatusPending, NewContactRecord("p", quiz.ContactInfo{}).Status)
}

func TestDocumentMatches(t *testing.T) {
	doc := Document{Data: map[string]any{"profileId": "p1", "status": "completed", "count": 3.0}}

	assert.True(t, doc.Matches())
	assert.True(t, doc.Matches(Where("profileId", "p1"), Where("status", "completed")))
	assert.False(t, doc.Matches(Where("profileId", "p2")))
	assert.False(t, doc.Matches(Where("missing", "x")))
	assert.False(t, doc.Matches(Where("count", "3")))
}

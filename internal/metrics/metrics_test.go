package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"risk-number-quiz/internal/apperrors"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.IncrementQuizzesStarted()
	m.IncrementProfilesSubmitted()
	m.IncrementAssessmentsCompleted()
	m.IncrementContactsCaptured()
	m.RecordWrite("")
	m.RecordWrite("")
	m.RecordWrite(apperrors.CategoryServiceUnavailable)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(1), snap.QuizzesStarted)
	assert.Equal(t, int64(1), snap.ProfilesSubmitted)
	assert.Equal(t, int64(1), snap.AssessmentsCompleted)
	assert.Equal(t, int64(1), snap.ContactsCaptured)
	assert.Equal(t, int64(3), snap.WritesTotal)
	assert.Equal(t, int64(2), snap.WritesSuccessful)
	assert.Equal(t, int64(1), snap.WritesFailed())
	assert.Equal(t, int64(1), snap.Failures[apperrors.CategoryServiceUnavailable])
	assert.False(t, snap.LastUpdateTime.IsZero())
}

func TestSnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.RecordWrite(apperrors.CategoryUnknown)

	snap := m.GetSnapshot()
	snap.Failures[apperrors.CategoryUnknown] = 100

	assert.Equal(t, int64(1), m.GetSnapshot().Failures[apperrors.CategoryUnknown])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementQuizzesStarted()
		m.RecordWrite(apperrors.CategoryUnknown)
	})
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordWrite("")
			m.IncrementProfilesSubmitted()
		}()
	}
	wg.Wait()

	snap := m.GetSnapshot()
	assert.Equal(t, int64(50), snap.WritesTotal)
	assert.Equal(t, int64(50), snap.ProfilesSubmitted)
}

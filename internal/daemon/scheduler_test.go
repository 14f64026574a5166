package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, now *time.Time) *Scheduler {
	t.Helper()
	s := NewScheduler(context.Background())
	s.now = func() time.Time { return *now }
	return s
}

func TestScheduler_CheckJobs(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, &now)

	var runs atomic.Int32
	s.AddJob(&Job{Name: "tick", Interval: time.Minute, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, 30*time.Second)

	s.checkJobs(now)
	s.wg.Wait()
	assert.Equal(t, int32(0), runs.Load())

	now = now.Add(30 * time.Second)
	s.checkJobs(now)
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())

	st := s.GetJobStatuses()
	require.Len(t, st, 1)
	assert.Equal(t, now.Add(time.Minute), st[0].NextRun)

	require.True(t, s.TriggerJob("tick"))
	s.checkJobs(now)
	s.wg.Wait()
	assert.Equal(t, int32(2), runs.Load())

	assert.False(t, s.TriggerJob("missing"))
}

func TestScheduler_FailureKeepsCadence(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, &now)

	job := &Job{Name: "flaky", Interval: time.Minute, Run: func(context.Context) error {
		return errors.New("boom")
	}}
	s.AddJob(job, 0)

	s.runJob(job)
	s.runJob(job)

	st := s.GetJobStatuses()[0]
	assert.Equal(t, "boom", st.LastError)
	assert.Equal(t, 2, st.ErrorCount)
	assert.Equal(t, now.Add(time.Minute), st.NextRun)
}

func TestScheduler_AddRemove(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, &now)
	noop := func(context.Context) error { return nil }

	s.AddJob(&Job{Name: "a", Interval: time.Minute, Run: noop}, 0)
	s.AddJob(&Job{Name: "b", Interval: time.Minute, Run: noop}, 0)
	s.AddJob(&Job{Name: "a", Interval: time.Hour, Run: noop}, 0)

	st := s.GetJobStatuses()
	require.Len(t, st, 2)
	assert.Equal(t, time.Hour, st[0].Interval)

	assert.True(t, s.RemoveJob("a"))
	assert.False(t, s.RemoveJob("a"))
	assert.Nil(t, s.GetJob("a"))
	assert.NotNil(t, s.GetJob("b"))
}

func TestJob_SetInterval(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, &now)
	job := &Job{Name: "j", Interval: 10 * time.Minute, Run: func(context.Context) error { return nil }}
	s.AddJob(job, 0)
	s.runJob(job)

	job.SetInterval(2 * time.Minute)
	assert.Equal(t, now.Add(2*time.Minute), s.GetJob("j").nextRun)
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/churn-mlops/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     int
	failures int
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	if j.runs <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

func TestAddJob_RejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	job := &fakeJob{name: "drift_check", schedule: "0 0 2 * * *"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(&fakeJob{name: "drift_check", schedule: "@daily"})
	assert.Error(t, err)

	assert.Equal(t, []string{"drift_check"}, s.GetAllJobs())
}

func TestAddJob_RejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	err := s.AddJob(&fakeJob{name: "broken", schedule: "not a cron spec"})
	assert.Error(t, err)
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &fakeJob{name: "batch_score", schedule: "0 0 3 * * *"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("batch_score")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, 1.0, history.GetSuccessRate())
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, 3, job.runs)
	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	assert.True(t, history.Results[0].Success)
}

func TestRunJob_FailureAfterRetries(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond
	s.maxRetries = 1

	job := &fakeJob{name: "doomed", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("doomed")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Contains(t, history.Results[0].Error, "transient failure")

	stats := s.GetJobStats()
	assert.Equal(t, 1, stats["doomed"].FailureCount)
	assert.NotNil(t, stats["doomed"].LastFailure)
}

func TestJobHistory_Caps(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(10), 10)
}

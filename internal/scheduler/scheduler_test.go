package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string {
	return j.name
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 0 3 * * *", &countingJob{name: "cleanup"}))
	assert.Equal(t, []string{"cleanup"}, s.Jobs())

	err := s.AddJob("0 0 4 * * *", &countingJob{name: "cleanup"})
	assert.Error(t, err, "duplicate job names are rejected")

	err = s.AddJob("not a schedule", &countingJob{name: "broken"})
	assert.Error(t, err)
	assert.Len(t, s.Jobs(), 1)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	failing := &countingJob{name: "failing", err: errors.New("boom")}

	assert.Error(t, s.RunNow(failing))
	assert.Equal(t, int32(1), failing.runs.Load())
}

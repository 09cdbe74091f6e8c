package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/harvest"
	memorypub "github.com/psdocs/doc-harvester/internal/publisher/memory"
	"github.com/psdocs/doc-harvester/internal/walker"
)

type fakeRunner struct {
	result       harvest.Result
	err          error
	waitCancel   bool
	unwound      chan struct{}
	panicMessage string
}

func (f *fakeRunner) Walk(_ context.Context, req walker.Request) (harvest.Result, error) {
	if f.panicMessage != "" {
		panic(f.panicMessage)
	}
	if req.OnProgress != nil {
		req.OnProgress(harvest.Progress{PagesProcessed: 1, TotalPages: req.MaxPages})
	}
	if f.waitCancel {
		for !req.Canceled() {
			time.Sleep(time.Millisecond)
		}
		if f.unwound != nil {
			close(f.unwound)
		}
		return f.result, harvest.ErrCanceled
	}
	return f.result, f.err
}

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

func validJobConfig() harvest.JobConfig {
	return harvest.JobConfig{
		SeedURL:  "https://docs.example.com/start",
		MaxPages: 5,
		MaxDepth: 1,
	}
}

func newTestService(runner Runner, publisher harvest.Publisher, cfg Config) (*Service, *stubClock) {
	clock := &stubClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	svc := New(runner, publisher, clock, &seqIDs{}, nil, zap.NewNop(), cfg)
	return svc, clock
}

func TestCreateRunsJobToCompletion(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: harvest.Result{DocumentsSaved: 3, ScriptsFound: 4, ScriptsSaved: 2}}
	svc, _ := newTestService(runner, nil, Config{})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)
	assert.Equal(t, "job-1", created.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.Wait(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, harvest.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 3, job.Result.DocumentsSaved)
	assert.Equal(t, 2, job.Result.ScriptsSaved)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	assert.Equal(t, string(harvest.JobStatusCompleted), job.Progress.Stage)
}

func TestCreateValidatesConfig(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&fakeRunner{}, nil, Config{})

	_, err := svc.Create(harvest.JobConfig{SeedURL: "ftp://bad", MaxPages: 1})
	assert.Error(t, err)

	_, err = svc.Create(harvest.JobConfig{SeedURL: "https://docs.example.com", MaxPages: 0})
	assert.Error(t, err)

	_, err = svc.Create(harvest.JobConfig{SeedURL: "https://docs.example.com", MaxPages: 1, MaxDepth: -1})
	assert.Error(t, err)
}

func TestGetUnknownJob(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&fakeRunner{}, nil, Config{})

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, harvest.ErrJobNotFound)
}

func TestCancelRunningJob(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{waitCancel: true, result: harvest.Result{DocumentsSaved: 1}}
	svc, _ := newTestService(runner, nil, Config{})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)

	snap, err := svc.Cancel(created.ID)
	require.NoError(t, err)
	assert.True(t, snap.Canceled)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.Wait(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, harvest.JobStatusCanceled, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.DocumentsSaved)
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&fakeRunner{}, nil, Config{})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = svc.Wait(ctx, created.ID)
	require.NoError(t, err)

	job, err := svc.Cancel(created.ID)
	require.NoError(t, err)
	assert.Equal(t, harvest.JobStatusCompleted, job.Status)
	assert.False(t, job.Canceled)
}

func TestJobErrorStatus(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("seed unreachable")}
	svc, _ := newTestService(runner, nil, Config{})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.Wait(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, harvest.JobStatusError, job.Status)
	assert.Contains(t, job.ErrorText, "seed unreachable")
}

func TestJobPanicBecomesError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{panicMessage: "walker blew up"}
	svc, _ := newTestService(runner, nil, Config{})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.Wait(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, harvest.JobStatusError, job.Status)
	assert.Contains(t, job.ErrorText, "walker blew up")
}

func TestCompletionEventPublished(t *testing.T) {
	t.Parallel()

	pub := memorypub.New()
	runner := &fakeRunner{result: harvest.Result{DocumentsSaved: 2}}
	svc, _ := newTestService(runner, pub, Config{CompletionTopic: "crawl-finished"})

	job, err := svc.RunBlocking(context.Background(), validJobConfig())
	require.NoError(t, err)
	assert.Equal(t, harvest.JobStatusCompleted, job.Status)

	messages := pub.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "crawl-finished", messages[0].Topic)
}

func TestRunBlockingReturnsTerminalSnapshot(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: harvest.Result{DocumentsSaved: 4, ScriptsSaved: 1}}
	svc, _ := newTestService(runner, nil, Config{})

	job, err := svc.RunBlocking(context.Background(), validJobConfig())
	require.NoError(t, err)

	assert.Equal(t, harvest.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 4, job.Result.DocumentsSaved)
}

func TestSweepEvictsExpiredRecords(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(&fakeRunner{}, nil, Config{TTL: time.Hour})

	job, err := svc.RunBlocking(context.Background(), validJobConfig())
	require.NoError(t, err)

	// Still within the TTL window.
	clock.Advance(30 * time.Minute)
	assert.Zero(t, svc.Sweep())
	_, err = svc.Get(job.ID)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, svc.Sweep())
	_, err = svc.Get(job.ID)
	assert.ErrorIs(t, err, harvest.ErrJobNotFound)
}

func TestSweepEvictsByAgeRegardlessOfStatus(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{waitCancel: true, unwound: make(chan struct{})}
	svc, clock := newTestService(runner, nil, Config{TTL: time.Minute})

	created, err := svc.Create(validJobConfig())
	require.NoError(t, err)

	// Still running, but its record has outlived the TTL.
	clock.Advance(time.Hour)
	assert.Equal(t, 1, svc.Sweep())
	_, err = svc.Get(created.ID)
	assert.ErrorIs(t, err, harvest.ErrJobNotFound)

	// Eviction flags the orphaned run as canceled so the walker unwinds.
	select {
	case <-runner.unwound:
	case <-time.After(5 * time.Second):
		t.Fatal("evicted job never observed cancellation")
	}
}

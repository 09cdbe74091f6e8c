// Package jobs owns the in-memory crawl job registry: creation, async
// execution, polling snapshots, cooperative cancellation, and TTL eviction
// of finished records.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/harvest"
	"github.com/psdocs/doc-harvester/internal/progress"
	"github.com/psdocs/doc-harvester/internal/walker"
)

// Registry housekeeping defaults.
const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Runner executes one crawl. *walker.Walker satisfies it; tests substitute
// a fake.
type Runner interface {
	Walk(ctx context.Context, req walker.Request) (harvest.Result, error)
}

// Config tunes registry housekeeping and completion publishing.
type Config struct {
	// TTL is how long finished job records stay queryable.
	TTL time.Duration
	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration
	// CompletionTopic receives a message per finished job; empty disables
	// publishing.
	CompletionTopic string
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// record pairs a job snapshot with its run-control state. The service mutex
// guards the job struct; the cancel flag is atomic so the walker can poll it
// without locking.
type record struct {
	job      harvest.Job
	canceled atomic.Bool
	done     chan struct{}
}

// Service is the crawl job registry. All jobs run in-process; records are
// lost on restart and evicted after Config.TTL once terminal.
type Service struct {
	runner    Runner
	publisher harvest.Publisher
	clock     harvest.Clock
	ids       harvest.IDGenerator
	emitter   progress.Emitter
	logger    *zap.Logger
	cfg       Config

	mu      sync.Mutex
	records map[string]*record

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New builds a Service. publisher may be nil to disable completion events;
// emitter may be nil to disable the progress stream.
func New(
	runner Runner,
	publisher harvest.Publisher,
	clock harvest.Clock,
	ids harvest.IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		runner:    runner,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		records:   make(map[string]*record),
	}
}

// CompletionEvent is the payload published when a job reaches a terminal
// state.
type CompletionEvent struct {
	JobID      string         `json:"job_id"`
	Status     string         `json:"status"`
	SeedURL    string         `json:"seed_url"`
	Result     harvest.Result `json:"result"`
	Error      string         `json:"error,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

func validateConfig(cfg harvest.JobConfig) error {
	if _, err := harvest.NormalizeURL(cfg.SeedURL); err != nil {
		return fmt.Errorf("seed url: %w", err)
	}
	if cfg.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1, got %d", cfg.MaxPages)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", cfg.MaxDepth)
	}
	return nil
}

// Create registers a job and starts it asynchronously. The returned snapshot
// carries the assigned ID and queued status; the caller polls Get for
// progress.
func (s *Service) Create(cfg harvest.JobConfig) (harvest.Job, error) {
	if err := validateConfig(cfg); err != nil {
		return harvest.Job{}, err
	}
	rec, err := s.register(cfg)
	if err != nil {
		return harvest.Job{}, err
	}

	go func() {
		// The job owns its lifetime; it is not bound to the request that
		// created it.
		s.run(context.Background(), rec)
	}()
	return s.snapshot(rec), nil
}

// RunBlocking registers a job and runs it on the caller's goroutine,
// returning the terminal snapshot. Context cancellation cancels the crawl.
func (s *Service) RunBlocking(ctx context.Context, cfg harvest.JobConfig) (harvest.Job, error) {
	if err := validateConfig(cfg); err != nil {
		return harvest.Job{}, err
	}
	rec, err := s.register(cfg)
	if err != nil {
		return harvest.Job{}, err
	}
	s.run(ctx, rec)
	return s.snapshot(rec), nil
}

func (s *Service) register(cfg harvest.JobConfig) (*record, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("allocate job id: %w", err)
	}
	rec := &record{
		job: harvest.Job{
			ID:      id,
			Status:  harvest.JobStatusQueued,
			Config:  cfg,
			Created: s.clock.Now(),
			Progress: harvest.Progress{
				TotalPages: cfg.MaxPages,
			},
		},
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	return rec, nil
}

// Get returns a snapshot of the job, or ErrJobNotFound for unknown and
// already-evicted IDs.
func (s *Service) Get(id string) (harvest.Job, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return harvest.Job{}, harvest.ErrJobNotFound
	}
	return s.snapshot(rec), nil
}

// Cancel requests cooperative cancellation. Terminal jobs are unaffected;
// the call is idempotent and always returns the current snapshot.
func (s *Service) Cancel(id string) (harvest.Job, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return harvest.Job{}, harvest.ErrJobNotFound
	}
	if !rec.job.Status.IsTerminal() {
		rec.canceled.Store(true)
		rec.job.Canceled = true
	}
	s.mu.Unlock()
	return s.snapshot(rec), nil
}

// Wait blocks until the job reaches a terminal state or ctx ends. Tests and
// the blocking endpoint use it; polling clients never need to.
func (s *Service) Wait(ctx context.Context, id string) (harvest.Job, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return harvest.Job{}, harvest.ErrJobNotFound
	}
	select {
	case <-rec.done:
		return s.snapshot(rec), nil
	case <-ctx.Done():
		return harvest.Job{}, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, rec *record) {
	defer close(rec.done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				zap.String("job_id", rec.job.ID),
				zap.Any("panic", r),
			)
			s.finish(rec, harvest.Result{}, fmt.Errorf("internal error: %v", r))
		}
	}()

	started := s.clock.Now()
	s.mu.Lock()
	rec.job.Status = harvest.JobStatusRunning
	rec.job.Started = &started
	s.mu.Unlock()

	s.emitter.Emit(progress.Event{
		JobID: rec.job.ID,
		TS:    started,
		Stage: progress.StageJobStart,
		URL:   rec.job.Config.SeedURL,
	})
	s.logger.Info("job started",
		zap.String("job_id", rec.job.ID),
		zap.String("seed_url", rec.job.Config.SeedURL),
		zap.Int("max_pages", rec.job.Config.MaxPages),
		zap.Int("max_depth", rec.job.Config.MaxDepth),
	)

	result, err := s.runner.Walk(ctx, walker.Request{
		JobID:    rec.job.ID,
		SeedURL:  rec.job.Config.SeedURL,
		MaxPages: rec.job.Config.MaxPages,
		MaxDepth: rec.job.Config.MaxDepth,
		Canceled: rec.canceled.Load,
		OnProgress: func(p harvest.Progress) {
			s.mu.Lock()
			rec.job.Progress = p
			s.mu.Unlock()
		},
	})
	s.finish(rec, result, err)
}

// finish applies the terminal transition and fans out completion signals.
func (s *Service) finish(rec *record, result harvest.Result, err error) {
	finished := s.clock.Now()

	s.mu.Lock()
	if rec.job.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		rec.job.Status = harvest.JobStatusCompleted
	case errors.Is(err, harvest.ErrCanceled):
		rec.job.Status = harvest.JobStatusCanceled
	default:
		rec.job.Status = harvest.JobStatusError
		rec.job.ErrorText = err.Error()
	}
	rec.job.Finished = &finished
	rec.job.Result = &result
	rec.job.Progress.Stage = string(rec.job.Status)
	rec.job.Progress.CurrentURL = ""
	job := rec.job
	s.mu.Unlock()

	s.emitter.Emit(progress.Event{
		JobID: job.ID,
		TS:    finished,
		Stage: terminalStage(job.Status),
		Dur:   runDuration(job),
		Note:  job.ErrorText,
	})
	s.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("documents_saved", result.DocumentsSaved),
		zap.Int("scripts_saved", result.ScriptsSaved),
		zap.NamedError("run_error", err),
	)
	s.publishCompletion(job, result)
}

func (s *Service) publishCompletion(job harvest.Job, result harvest.Result) {
	if s.publisher == nil || s.cfg.CompletionTopic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := CompletionEvent{
		JobID:      job.ID,
		Status:     string(job.Status),
		SeedURL:    job.Config.SeedURL,
		Result:     result,
		Error:      job.ErrorText,
		FinishedAt: *job.Finished,
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.CompletionTopic, event); err != nil {
		s.logger.Warn("completion publish failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func terminalStage(status harvest.JobStatus) progress.Stage {
	switch status {
	case harvest.JobStatusCanceled:
		return progress.StageJobCanceled
	case harvest.JobStatusError:
		return progress.StageJobError
	default:
		return progress.StageJobDone
	}
}

func runDuration(job harvest.Job) time.Duration {
	if job.Started == nil || job.Finished == nil {
		return 0
	}
	return job.Finished.Sub(*job.Started)
}

func (s *Service) snapshot(rec *record) harvest.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := rec.job
	if rec.job.Result != nil {
		result := *rec.job.Result
		job.Result = &result
	}
	return job
}

// StartSweeper launches the background TTL eviction loop.
func (s *Service) StartSweeper() {
	s.sweepStop = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.sweepStop:
				return
			}
		}
	}()
}

// Sweep evicts records created more than one TTL ago, regardless of status,
// and reports how many were removed. Retention is a resource bound, not a
// correctness guarantee; a still-running job is flagged canceled so its
// walker unwinds after the record leaves the registry.
func (s *Service) Sweep() int {
	cutoff := s.clock.Now().Add(-s.cfg.TTL)

	s.mu.Lock()
	var evicted int
	for id, rec := range s.records {
		if rec.job.Created.After(cutoff) {
			continue
		}
		if !rec.job.Status.IsTerminal() {
			rec.canceled.Store(true)
		}
		delete(s.records, id)
		evicted++
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("evicted expired job records", zap.Int("count", evicted))
	}
	return evicted
}

// Close stops the sweeper if it was started.
func (s *Service) Close() {
	if s.sweepStop == nil {
		return
	}
	close(s.sweepStop)
	<-s.sweepDone
}
